// Package graduation implements the graduation tracker (component J): a
// state machine per tracked mint (Monitoring -> NearGraduation ->
// Graduating -> Graduated, with Failed reachable from either of the
// middle two on a progress regression), polled at an adaptive cadence.
package graduation

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"ares_api/internal/curve"
	"ares_api/internal/eventbus"
	"ares_api/internal/models"
)

// nearGraduationThreshold is the progress percentage (§4.10) at which
// Monitoring transitions to NearGraduation and the tracker's polling
// cadence tightens.
const nearGraduationThreshold = 95.0

// fastPollInterval and slowPollInterval are the two cadences §4.10
// specifies: 1s while any tracked mint is NearGraduation/Graduating,
// 5s otherwise.
const (
	fastPollInterval = 1 * time.Second
	slowPollInterval = 5 * time.Second
)

// CurveStateFetcher is the subset of onchain.Fetcher the tracker needs.
type CurveStateFetcher interface {
	CurveState(ctx context.Context, mint solana.PublicKey) (*models.CurveState, error)
}

// PoolFinder detects a newly created Raydium pool for a graduated mint.
// No concrete Raydium SDK is in scope (the deployment points this at
// whatever pool-discovery service/RPC polling it operates); the tracker
// only depends on the abstract contract.
type PoolFinder interface {
	FindPool(ctx context.Context, mint string) (poolAddress string, found bool, err error)
}

// Tracker owns the live set of tracked mints and their graduation state.
type Tracker struct {
	fetcher CurveStateFetcher
	pools   PoolFinder
	bus     *eventbus.EventBus

	mu      sync.Mutex
	tracked map[string]*models.TrackedToken
}

func New(fetcher CurveStateFetcher, pools PoolFinder, bus *eventbus.EventBus) *Tracker {
	return &Tracker{
		fetcher: fetcher,
		pools:   pools,
		bus:     bus,
		tracked: make(map[string]*models.TrackedToken),
	}
}

// Track begins supervising mint, starting in Monitoring. A mint already
// tracked is left alone.
func (t *Tracker) Track(mint, venueType, strategyID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tracked[mint]; ok {
		return
	}
	now := time.Now().UTC()
	t.tracked[mint] = &models.TrackedToken{
		Mint:           mint,
		VenueType:      venueType,
		StrategyID:     strategyID,
		State:          models.GraduationStateMonitoring,
		StartedAt:      now,
		LastCheckedAt:  now,
		StateChangedAt: now,
	}
}

// Snapshot returns a copy of one tracked token's current record, for the
// ops HTTP surface.
func (t *Tracker) Snapshot(mint string) (models.TrackedToken, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tt, ok := t.tracked[mint]
	if !ok {
		return models.TrackedToken{}, false
	}
	return *tt, true
}

// Run drives the adaptive polling loop until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	for {
		interval := t.nextInterval()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			t.checkAll(ctx)
		}
	}
}

func (t *Tracker) nextInterval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tt := range t.tracked {
		if tt.State == models.GraduationStateNearGraduation || tt.State == models.GraduationStateGraduating {
			return fastPollInterval
		}
	}
	return slowPollInterval
}

func (t *Tracker) checkAll(ctx context.Context) {
	t.mu.Lock()
	mints := make([]string, 0, len(t.tracked))
	for mint, tt := range t.tracked {
		if isTerminal(tt.State) {
			continue
		}
		mints = append(mints, mint)
	}
	t.mu.Unlock()

	for _, mint := range mints {
		t.checkOne(ctx, mint)
	}
}

func (t *Tracker) checkOne(ctx context.Context, mintStr string) {
	t.mu.Lock()
	tt, ok := t.tracked[mintStr]
	t.mu.Unlock()
	if !ok || isTerminal(tt.State) {
		return
	}

	venue, err := curve.Lookup(tt.VenueType)
	if err != nil {
		log.Printf("[graduation] mint %s: unsupported venue %s: %v", mintStr, tt.VenueType, err)
		return
	}

	mint, err := solana.PublicKeyFromBase58(mintStr)
	if err != nil {
		log.Printf("[graduation] mint %s: invalid pubkey: %v", mintStr, err)
		return
	}

	state, err := t.fetcher.CurveState(ctx, mint)
	if err != nil {
		log.Printf("[graduation] mint %s: curve state fetch failed: %v", mintStr, err)
		return
	}

	progress := curve.GraduationProgress(state.RealSOLReserves, venue.GraduationThresholdLamports())

	var poolFound bool
	var poolAddr string
	if state.IsComplete && tt.State == models.GraduationStateGraduating {
		poolAddr, poolFound, err = t.pools.FindPool(ctx, mintStr)
		if err != nil {
			log.Printf("[graduation] mint %s: pool lookup failed: %v", mintStr, err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()
	elapsedMin := now.Sub(tt.LastCheckedAt).Minutes()
	if elapsedMin > 0 {
		tt.ProgressVelocity = (progress - tt.Progress) / elapsedMin
	}
	tt.LastProgress = tt.Progress
	tt.Progress = progress
	tt.LastCheckedAt = now
	tt.CheckCount++

	from := tt.State
	to := nextState(from, progress, state.IsComplete, poolFound)
	if poolFound {
		tt.RaydiumPool = poolAddr
	}

	if to != from {
		tt.State = to
		tt.StateChangedAt = now
		t.bus.Publish(topicFor(to), eventbus.GraduationStateChangedData{
			Mint:         mintStr,
			FromState:    from,
			ToState:      to,
			Progress:     progress,
			Significance: significanceFor(to),
		})
	}
}

// nextState applies §4.10's transition table. A regression below the
// near-graduation bar while already NearGraduation/Graduating is
// treated as a failed graduation attempt rather than a demotion back to
// Monitoring — a curve that dipped enough to leave the zone once is not
// expected to track cleanly the second time.
func nextState(current string, progress float64, isComplete, poolFound bool) string {
	switch current {
	case models.GraduationStateMonitoring:
		if progress >= nearGraduationThreshold {
			return models.GraduationStateNearGraduation
		}
		return current
	case models.GraduationStateNearGraduation:
		if isComplete {
			return models.GraduationStateGraduating
		}
		if progress < nearGraduationThreshold {
			return models.GraduationStateFailed
		}
		return current
	case models.GraduationStateGraduating:
		if poolFound {
			return models.GraduationStateGraduated
		}
		if progress < nearGraduationThreshold {
			return models.GraduationStateFailed
		}
		return current
	default:
		return current
	}
}

func isTerminal(state string) bool {
	return state == models.GraduationStateGraduated || state == models.GraduationStateFailed
}

func topicFor(state string) string {
	switch state {
	case models.GraduationStateNearGraduation:
		return eventbus.TopicCurveGraduationImminent
	case models.GraduationStateGraduating:
		return eventbus.TopicCurveGraduating
	case models.GraduationStateGraduated:
		return eventbus.TopicCurveGraduated
	case models.GraduationStateFailed:
		return eventbus.TopicCurveGraduationFailed
	default:
		return eventbus.TopicCurveGraduationImminent
	}
}

func significanceFor(state string) string {
	switch state {
	case models.GraduationStateGraduating, models.GraduationStateGraduated:
		return models.SignificanceCritical
	case models.GraduationStateNearGraduation:
		return models.SignificanceHigh
	default:
		return models.SignificanceMedium
	}
}
