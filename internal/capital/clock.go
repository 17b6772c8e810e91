package capital

import "time"

// Clock abstracts "now" so daily-usage reset logic can be tested across a
// UTC calendar-day boundary without sleeping.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

var RealClock Clock = realClock{}
