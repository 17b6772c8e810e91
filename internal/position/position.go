// Package position implements the position manager (component H): opens
// positions on entry, tracks price updates and momentum, evaluates the
// exit-rule priority ladder, and closes positions on exit.
package position

import (
	"encoding/json"
	"sync"
	"time"

	"ares_api/internal/capital"
	"ares_api/internal/eventbus"
	repo "ares_api/internal/interfaces/repository"
	"ares_api/internal/models"
	"ares_api/internal/tradingerr"

	"github.com/shopspring/decimal"
)

// momentumWindow is the number of recent update_price samples per mint
// the take-profit adaptive relax looks at (§4.8's "[FULL] Momentum
// tracking", default: last 5 samples).
const momentumWindow = 5

// momentumRelaxThresholdPercent is the momentum reading (percent change
// over the window) above which the take-profit bar is relaxed.
const momentumRelaxThresholdPercent = 5.0

// momentumRelaxMultiplier stretches the take-profit bar when momentum is
// running hot, so a strong upward move isn't cut short at the nominal
// target.
const momentumRelaxMultiplier = 1.5

// ExitSignal is one exit-rule match returned from UpdatePrice.
type ExitSignal struct {
	PositionID  string
	Reason      string
	ExitPercent float64
}

// Manager owns the live set of open positions, mirrored through repo on
// every state-changing operation (§4.8's "Persistence").
type Manager struct {
	repo    repo.PositionRepository
	capital *capital.Manager
	bus     *eventbus.EventBus

	mu        sync.RWMutex
	positions map[string]*models.Position // keyed by position_id
	byMint    map[string][]string         // mint -> open position_ids

	momentumMu sync.Mutex
	momentum   map[string][]float64 // mint -> recent prices, oldest first
}

func NewManager(store repo.PositionRepository, capitalMgr *capital.Manager, bus *eventbus.EventBus) *Manager {
	return &Manager{
		repo:      store,
		capital:   capitalMgr,
		bus:       bus,
		positions: make(map[string]*models.Position),
		byMint:    make(map[string][]string),
		momentum:  make(map[string][]float64),
	}
}

// OpenPosition constructs and persists a new Position record, seeding
// high_water_mark at entry price and snapshotting the strategy's current
// risk params as this position's exit config (§3's ExitConfig isolation
// from later strategy edits). Satisfies executor.PositionOpener by
// structural typing.
func (m *Manager) OpenPosition(positionID string, edge *models.Edge, strat *models.Strategy, entryPrice float64, entryTokens uint64, entryTx string) (*models.Position, error) {
	risk := strat.Risk()
	exitCfg := models.ExitConfig{
		MaxDrawdownPercent:     risk.MaxDrawdownPercent,
		TakeProfitPercent:      risk.TakeProfitPercent,
		TrailingStopPercent:    risk.TrailingStopPercent,
		TrailingStopActivation: risk.TrailingStopActivation,
		TimeLimitMinutes:       risk.TimeLimitMinutes,
		MomentumAdaptiveExits:  risk.MomentumAdaptiveExits,
	}
	exitCfgJSONB, err := toJSONB(exitCfg)
	if err != nil {
		return nil, tradingerr.Wrap("position.Manager.OpenPosition", tradingerr.Internal, "encode exit config", err)
	}

	pos := &models.Position{
		PositionID:           positionID,
		EdgeID:               edge.EdgeID,
		StrategyID:           strat.StrategyID,
		TokenMint:            edge.TokenMint,
		VenueType:            edge.VenueType,
		EntryAmountBase:      decimal.Zero,
		EntryTokenAmount:     entryTokens,
		EntryPrice:           entryPrice,
		EntryTime:            time.Now().UTC(),
		EntryTxSignature:     entryTx,
		CurrentPrice:         entryPrice,
		HighWaterMark:        entryPrice,
		ExitConfig:           exitCfgJSONB,
		Status:               models.PositionStatusOpen,
		RemainingAmountBase:  decimal.Zero,
		RemainingTokenAmount: entryTokens,
	}

	if err := m.repo.Create(pos); err != nil {
		return nil, tradingerr.Wrap("position.Manager.OpenPosition", tradingerr.Internal, "persist position", err)
	}

	m.mu.Lock()
	m.positions[positionID] = pos
	m.byMint[edge.TokenMint] = append(m.byMint[edge.TokenMint], positionID)
	m.mu.Unlock()

	return pos, nil
}

// UpdatePrice applies a fresh price observation to every open position on
// mint, updates momentum, and returns the exit signals produced by the
// priority ladder in §4.8.
func (m *Manager) UpdatePrice(mint string, price float64) []ExitSignal {
	momentumPercent := m.recordMomentum(mint, price)

	m.mu.Lock()
	ids := append([]string(nil), m.byMint[mint]...)
	m.mu.Unlock()

	var signals []ExitSignal
	for _, id := range ids {
		m.mu.Lock()
		pos, ok := m.positions[id]
		m.mu.Unlock()
		if !ok || !pos.IsOpen() {
			continue
		}

		pos.CurrentPrice = price
		if price > pos.HighWaterMark {
			pos.HighWaterMark = price
		}
		if pos.EntryPrice != 0 {
			pos.UnrealizedPnLPercent = (price - pos.EntryPrice) / pos.EntryPrice * 100
		}

		if sig, ok := evaluateExitRules(pos, momentumPercent); ok {
			signals = append(signals, sig)
		}

		if err := m.repo.Update(pos); err != nil {
			// Best-effort: in-memory state is authoritative until the next
			// successful write (§4.8's "Persistence").
			continue
		}
	}
	return signals
}

// evaluateExitRules runs the four rules in priority order, first match
// wins.
func evaluateExitRules(pos *models.Position, momentumPercent float64) (ExitSignal, bool) {
	cfg := exitConfigOf(pos)

	// 1. Stop-loss.
	if cfg.MaxDrawdownPercent > 0 && pos.UnrealizedPnLPercent <= -cfg.MaxDrawdownPercent {
		return ExitSignal{PositionID: pos.PositionID, Reason: models.ExitReasonStopLoss, ExitPercent: 100}, true
	}

	// 2. Take-profit, momentum-adaptively relaxed.
	takeProfitBar := cfg.TakeProfitPercent
	if cfg.MomentumAdaptiveExits && momentumPercent > momentumRelaxThresholdPercent {
		takeProfitBar *= momentumRelaxMultiplier
	}
	if takeProfitBar > 0 && pos.UnrealizedPnLPercent >= takeProfitBar {
		return ExitSignal{PositionID: pos.PositionID, Reason: models.ExitReasonTakeProfit, ExitPercent: 100}, true
	}

	// 3. Trailing stop, active only once the high-water mark has cleared
	// the activation threshold above entry.
	if cfg.TrailingStopPercent > 0 && pos.EntryPrice > 0 {
		activationPrice := pos.EntryPrice * (1 + cfg.TrailingStopActivation/100)
		if pos.HighWaterMark >= activationPrice {
			trailBar := pos.HighWaterMark * (1 - cfg.TrailingStopPercent/100)
			if pos.CurrentPrice <= trailBar {
				return ExitSignal{PositionID: pos.PositionID, Reason: models.ExitReasonTrailingStop, ExitPercent: 100}, true
			}
		}
	}

	// 4. Time limit.
	if cfg.TimeLimitMinutes > 0 {
		elapsed := time.Since(pos.EntryTime)
		if elapsed >= time.Duration(cfg.TimeLimitMinutes)*time.Minute {
			return ExitSignal{PositionID: pos.PositionID, Reason: models.ExitReasonTimeLimit, ExitPercent: 100}, true
		}
	}

	return ExitSignal{}, false
}

// ClosePosition transitions id to closed, releases its capital
// reservation, persists, and emits position.exit_completed.
func (m *Manager) ClosePosition(id string, exitPrice, realizedPnL float64, reason, exitTx string) error {
	m.mu.Lock()
	pos, ok := m.positions[id]
	m.mu.Unlock()
	if !ok {
		return tradingerr.New("position.Manager.ClosePosition", tradingerr.NotFound, "position not found")
	}

	pos.Status = models.PositionStatusClosed
	pos.CurrentPrice = exitPrice
	pos.RemainingAmountBase = decimal.Zero
	pos.RemainingTokenAmount = 0
	pos.PartialExits = appendPartialExit(pos.PartialExits, models.PartialExit{
		ExitPercent: 100,
		ExitPrice:   exitPrice,
		RealizedPnL: decimal.NewFromFloat(realizedPnL),
		Reason:      reason,
		TxSignature: exitTx,
		ExitedAt:    time.Now().UTC(),
	})

	if err := m.repo.Update(pos); err != nil {
		return tradingerr.Wrap("position.Manager.ClosePosition", tradingerr.Internal, "persist position close", err)
	}

	m.capital.Release(id)
	m.removeFromMintIndex(pos.TokenMint, id)

	m.bus.Publish(eventbus.TopicPositionExitCompleted, eventbus.PositionExitCompletedData{
		PositionID:  id,
		Reason:      reason,
		ExitPercent: 100,
		Signature:   exitTx,
		RealizedPnL: realizedPnL,
	})

	return nil
}

// MarkOrphaned flags a position whose token balance has disappeared
// on-chain without a recorded exit. Manual recovery is ReactivatePosition.
func (m *Manager) MarkOrphaned(id string) error {
	m.mu.Lock()
	pos, ok := m.positions[id]
	m.mu.Unlock()
	if !ok {
		return tradingerr.New("position.Manager.MarkOrphaned", tradingerr.NotFound, "position not found")
	}
	pos.Status = models.PositionStatusOrphaned
	return m.repo.Update(pos)
}

// ReactivatePosition restores an orphaned position to open, e.g. after an
// operator confirms the token balance is in fact still held.
func (m *Manager) ReactivatePosition(id string) error {
	m.mu.Lock()
	pos, ok := m.positions[id]
	m.mu.Unlock()
	if !ok {
		return tradingerr.New("position.Manager.ReactivatePosition", tradingerr.NotFound, "position not found")
	}
	if pos.Status != models.PositionStatusOrphaned {
		return tradingerr.New("position.Manager.ReactivatePosition", tradingerr.Validation, "position is not orphaned")
	}
	pos.Status = models.PositionStatusOpen
	return m.repo.Update(pos)
}

// OpenPositionsForMint returns how many live open positions are tracked
// for mint, used by the monitor (I) to decide whether to unsubscribe.
func (m *Manager) OpenPositionsForMint(mint string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, id := range m.byMint[mint] {
		if pos, ok := m.positions[id]; ok && pos.IsOpen() {
			n++
		}
	}
	return n
}

// Get returns the live position record for id, used by the executor (G)
// when routing an exit signal through to a sell build, and by the
// monitor (I) when resolving a PDA subscription back to its mint.
func (m *Manager) Get(id string) (*models.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.positions[id]
	return pos, ok
}

func (m *Manager) removeFromMintIndex(mint, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.byMint[mint]
	for i, existing := range ids {
		if existing == id {
			m.byMint[mint] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// recordMomentum appends price to mint's rolling window and returns the
// percent change from the oldest sample in the window to price.
func (m *Manager) recordMomentum(mint string, price float64) float64 {
	m.momentumMu.Lock()
	defer m.momentumMu.Unlock()

	samples := append(m.momentum[mint], price)
	if len(samples) > momentumWindow {
		samples = samples[len(samples)-momentumWindow:]
	}
	m.momentum[mint] = samples

	if len(samples) < 2 || samples[0] == 0 {
		return 0
	}
	return (samples[len(samples)-1] - samples[0]) / samples[0] * 100
}

func exitConfigOf(pos *models.Position) models.ExitConfig {
	var cfg models.ExitConfig
	b, err := json.Marshal(map[string]interface{}(pos.ExitConfig))
	if err != nil {
		return cfg
	}
	_ = json.Unmarshal(b, &cfg)
	return cfg
}

func toJSONB(v interface{}) (models.JSONB, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return models.JSONB(m), nil
}

func appendPartialExit(existing models.JSONB, exit models.PartialExit) models.JSONB {
	var list []models.PartialExit
	if raw, ok := existing["entries"]; ok {
		if b, err := json.Marshal(raw); err == nil {
			_ = json.Unmarshal(b, &list)
		}
	}
	list = append(list, exit)

	b, err := json.Marshal(list)
	if err != nil {
		return existing
	}
	var asInterface []interface{}
	_ = json.Unmarshal(b, &asInterface)
	return models.JSONB{"entries": asInterface}
}
