package subscribers

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"ares_api/internal/eventbus"
)

// TradeAnalytics stores real-time trading metrics across both entries
// (edge.executed) and exits (position.exit_completed).
type TradeAnalytics struct {
	mu                 sync.RWMutex
	TotalEntries       int64
	TotalExits         int64
	TotalSOLSpent      uint64
	TotalRealizedPnL   float64
	AverageEntryMS     float64
	LastEventTimestamp time.Time
	TradesPerMinute    float64
	MintVolumes        map[string]uint64 // SOL spent per position_id, not per mint: edge.executed carries no mint
	lastMinuteEvents   []time.Time
}

// AnalyticsSubscriber tracks edge execution and position exit analytics
// in real-time from the event bus.
type AnalyticsSubscriber struct {
	analytics *TradeAnalytics
}

func NewAnalyticsSubscriber() *AnalyticsSubscriber {
	return &AnalyticsSubscriber{
		analytics: &TradeAnalytics{
			MintVolumes:      make(map[string]uint64),
			lastMinuteEvents: make([]time.Time, 0),
		},
	}
}

func (s *AnalyticsSubscriber) handleEdgeExecuted(env eventbus.Envelope) {
	raw, err := json.Marshal(env.Data)
	if err != nil {
		log.Printf("[analytics] failed to marshal edge.executed payload: %v", err)
		return
	}
	var data eventbus.EdgeExecutedData
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("[analytics] failed to decode edge.executed payload: %v", err)
		return
	}

	s.analytics.mu.Lock()
	defer s.analytics.mu.Unlock()

	s.analytics.TotalEntries++
	s.analytics.TotalSOLSpent += data.SOLSpent
	s.analytics.LastEventTimestamp = env.Timestamp
	s.analytics.MintVolumes[data.PositionID] += data.SOLSpent

	s.recordTick(time.Now())
}

func (s *AnalyticsSubscriber) handlePositionExitCompleted(env eventbus.Envelope) {
	raw, err := json.Marshal(env.Data)
	if err != nil {
		log.Printf("[analytics] failed to marshal position.exit_completed payload: %v", err)
		return
	}
	var data eventbus.PositionExitCompletedData
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("[analytics] failed to decode position.exit_completed payload: %v", err)
		return
	}

	s.analytics.mu.Lock()
	defer s.analytics.mu.Unlock()

	s.analytics.TotalExits++
	s.analytics.TotalRealizedPnL += data.RealizedPnL
	s.analytics.LastEventTimestamp = env.Timestamp

	s.recordTick(time.Now())
}

// recordTick must be called with analytics.mu held.
func (s *AnalyticsSubscriber) recordTick(now time.Time) {
	s.analytics.lastMinuteEvents = append(s.analytics.lastMinuteEvents, now)

	cutoff := now.Add(-1 * time.Minute)
	valid := make([]time.Time, 0, len(s.analytics.lastMinuteEvents))
	for _, t := range s.analytics.lastMinuteEvents {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	s.analytics.lastMinuteEvents = valid
	s.analytics.TradesPerMinute = float64(len(valid))
}

// GetStats returns current analytics (thread-safe).
func (s *AnalyticsSubscriber) GetStats() map[string]interface{} {
	s.analytics.mu.RLock()
	defer s.analytics.mu.RUnlock()

	mintVolumes := make(map[string]uint64, len(s.analytics.MintVolumes))
	for k, v := range s.analytics.MintVolumes {
		mintVolumes[k] = v
	}

	return map[string]interface{}{
		"total_entries":       s.analytics.TotalEntries,
		"total_exits":         s.analytics.TotalExits,
		"total_sol_spent":     s.analytics.TotalSOLSpent,
		"total_realized_pnl":  s.analytics.TotalRealizedPnL,
		"last_event":          s.analytics.LastEventTimestamp.Format(time.RFC3339),
		"trades_per_minute":   s.analytics.TradesPerMinute,
		"mint_volumes":        mintVolumes,
	}
}

// Subscribe registers this subscriber against both the entry and exit
// topics and runs its delivery loops until the bus is closed.
func (s *AnalyticsSubscriber) Subscribe(eb *eventbus.EventBus) {
	executed := eb.Subscribe(eventbus.TopicEdgeExecuted)
	go func() {
		for env := range executed.C {
			s.handleEdgeExecuted(env)
		}
	}()

	exited := eb.Subscribe(eventbus.TopicPositionExitCompleted)
	go func() {
		for env := range exited.C {
			s.handlePositionExitCompleted(env)
		}
	}()

	log.Println("[analytics] subscribed to edge.executed and position.exit_completed")
}
