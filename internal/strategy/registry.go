// Package strategy implements the in-memory strategy registry (component
// F): create/update/delete/toggle/risk-profile/reset-stats/emergency-kill,
// and the eligible_strategies edge-matching filter.
package strategy

import (
	"sync"

	"ares_api/internal/concurrency"
	repo "ares_api/internal/interfaces/repository"
	"ares_api/internal/models"
	"ares_api/internal/tradingerr"
)

// Registry holds strategy_id -> Strategy in memory, mirrored to repo on
// every mutation. Registration order is tracked separately since
// LockFreeMap's bucket layout carries no ordering.
type Registry struct {
	repo repo.StrategyRepository

	live *concurrency.LockFreeMap[string, *models.Strategy]

	orderMu sync.Mutex
	order   []string
}

func NewRegistry(store repo.StrategyRepository) (*Registry, error) {
	r := &Registry{
		repo: store,
		live: concurrency.NewLockFreeMap[string, *models.Strategy](64),
	}

	existing, err := store.ListAll()
	if err != nil {
		return nil, tradingerr.Wrap("strategy.NewRegistry", tradingerr.Internal, "load strategies", err)
	}
	for i := range existing {
		s := existing[i]
		r.live.Put(s.StrategyID, &s)
		r.order = append(r.order, s.StrategyID)
	}

	return r, nil
}

func (r *Registry) Create(s *models.Strategy) error {
	if err := r.repo.Create(s); err != nil {
		return tradingerr.Wrap("strategy.Registry.Create", tradingerr.Internal, "persist strategy", err)
	}
	r.live.Put(s.StrategyID, s)

	r.orderMu.Lock()
	r.order = append(r.order, s.StrategyID)
	r.orderMu.Unlock()

	return nil
}

func (r *Registry) Update(s *models.Strategy) error {
	if err := r.repo.Update(s); err != nil {
		return tradingerr.Wrap("strategy.Registry.Update", tradingerr.Internal, "persist strategy", err)
	}
	r.live.Put(s.StrategyID, s)
	return nil
}

func (r *Registry) Get(strategyID string) (*models.Strategy, bool) {
	return r.live.Get(strategyID)
}

func (r *Registry) Delete(strategyID string) error {
	if err := r.repo.Delete(strategyID); err != nil {
		return tradingerr.Wrap("strategy.Registry.Delete", tradingerr.Internal, "delete strategy", err)
	}
	r.live.Delete(strategyID)

	r.orderMu.Lock()
	for i, id := range r.order {
		if id == strategyID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.orderMu.Unlock()

	return nil
}

func (r *Registry) ToggleActive(strategyID string, active bool) error {
	s, ok := r.live.Get(strategyID)
	if !ok {
		return tradingerr.New("strategy.Registry.ToggleActive", tradingerr.NotFound, "strategy not found")
	}
	s.IsActive = active
	return r.Update(s)
}

// SetRiskProfile applies one of the predefined presets, replacing the
// strategy's risk_params wholesale.
func (r *Registry) SetRiskProfile(strategyID, profile string) error {
	s, ok := r.live.Get(strategyID)
	if !ok {
		return tradingerr.New("strategy.Registry.SetRiskProfile", tradingerr.NotFound, "strategy not found")
	}
	preset, ok := models.RiskProfilePreset(profile)
	if !ok {
		return tradingerr.New("strategy.Registry.SetRiskProfile", tradingerr.Validation, "unknown risk profile")
	}

	s.RiskParams = riskParamsToJSONB(preset)
	return r.Update(s)
}

// ResetStats clears the strategy's accumulated stats JSONB.
func (r *Registry) ResetStats(strategyID string) error {
	s, ok := r.live.Get(strategyID)
	if !ok {
		return tradingerr.New("strategy.Registry.ResetStats", tradingerr.NotFound, "strategy not found")
	}
	s.Stats = models.JSONB{}
	return r.Update(s)
}

// EmergencyKill disables the strategy. Cancelling pending approvals is
// the executor's responsibility (it owns the approval queue); this only
// flips the flag that stops new edges from matching the strategy.
func (r *Registry) EmergencyKill(strategyID string) error {
	return r.ToggleActive(strategyID, false)
}

// EligibleStrategies filters the registry to active strategies whose
// venue_types contains venueType, in registration order (§4.6's
// "deterministic, no implicit priority").
func (r *Registry) EligibleStrategies(venueType string) []*models.Strategy {
	r.orderMu.Lock()
	order := append([]string(nil), r.order...)
	r.orderMu.Unlock()

	var out []*models.Strategy
	for _, id := range order {
		s, ok := r.live.Get(id)
		if !ok || !s.IsActive {
			continue
		}
		for _, v := range s.VenueTypeList() {
			if v == venueType {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func riskParamsToJSONB(rp models.RiskParams) models.JSONB {
	return models.JSONB{
		"max_position_sol":                 rp.MaxPositionSOL,
		"daily_loss_limit_sol":             rp.DailyLossLimitSOL,
		"max_drawdown_percent":             rp.MaxDrawdownPercent,
		"take_profit_percent":              rp.TakeProfitPercent,
		"trailing_stop_percent":            rp.TrailingStopPercent,
		"trailing_stop_activation_percent": rp.TrailingStopActivation,
		"time_limit_minutes":               rp.TimeLimitMinutes,
		"concurrent_positions":             rp.ConcurrentPositions,
		"auto_execute_enabled":             rp.AutoExecuteEnabled,
		"momentum_adaptive_exits":          rp.MomentumAdaptiveExits,
		"consensus_required":               rp.ConsensusRequired,
		"max_allocation_percent":           rp.MaxAllocationPercent,
		"max_positions":                    rp.MaxPositions,
	}
}
