package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// RiskParams collects the per-strategy risk and exit configuration.
type RiskParams struct {
	MaxPositionSOL         float64 `json:"max_position_sol"`
	DailyLossLimitSOL      float64 `json:"daily_loss_limit_sol"`
	MaxDrawdownPercent     float64 `json:"max_drawdown_percent"`
	TakeProfitPercent      float64 `json:"take_profit_percent"`
	TrailingStopPercent    float64 `json:"trailing_stop_percent"`
	TrailingStopActivation float64 `json:"trailing_stop_activation_percent"`
	TimeLimitMinutes       int     `json:"time_limit_minutes"`
	ConcurrentPositions    int     `json:"concurrent_positions"`
	AutoExecuteEnabled     bool    `json:"auto_execute_enabled"`
	MomentumAdaptiveExits  bool    `json:"momentum_adaptive_exits"`
	ConsensusRequired      bool    `json:"consensus_required"`
	MaxAllocationPercent   float64 `json:"max_allocation_percent"`
	MaxPositions           int     `json:"max_positions"`
}

// Risk profile presets referenced by the strategy engine's SetRiskProfile operation.
const (
	RiskProfileConservative = "conservative"
	RiskProfileModerate     = "moderate"
	RiskProfileAggressive   = "aggressive"
	RiskProfileDevTesting   = "dev_testing"
)

func RiskProfilePreset(name string) (RiskParams, bool) {
	switch name {
	case RiskProfileConservative:
		return RiskParams{
			MaxPositionSOL:         0.1,
			DailyLossLimitSOL:      0.5,
			MaxDrawdownPercent:     8,
			TakeProfitPercent:      15,
			TrailingStopPercent:    5,
			TrailingStopActivation: 8,
			TimeLimitMinutes:       30,
			ConcurrentPositions:    2,
			MaxAllocationPercent:   10,
			MaxPositions:           2,
		}, true
	case RiskProfileModerate:
		return RiskParams{
			MaxPositionSOL:         0.25,
			DailyLossLimitSOL:      1.5,
			MaxDrawdownPercent:     12,
			TakeProfitPercent:      30,
			TrailingStopPercent:    10,
			TrailingStopActivation: 15,
			TimeLimitMinutes:       60,
			ConcurrentPositions:    4,
			AutoExecuteEnabled:     true,
			MaxAllocationPercent:   20,
			MaxPositions:           4,
		}, true
	case RiskProfileAggressive:
		return RiskParams{
			MaxPositionSOL:         0.5,
			DailyLossLimitSOL:      3,
			MaxDrawdownPercent:     20,
			TakeProfitPercent:      60,
			TrailingStopPercent:    15,
			TrailingStopActivation: 25,
			TimeLimitMinutes:       120,
			ConcurrentPositions:    8,
			AutoExecuteEnabled:     true,
			MomentumAdaptiveExits:  true,
			MaxAllocationPercent:   35,
			MaxPositions:           8,
		}, true
	case RiskProfileDevTesting:
		return RiskParams{
			MaxPositionSOL:         0.01,
			DailyLossLimitSOL:      0.05,
			MaxDrawdownPercent:     5,
			TakeProfitPercent:      5,
			TrailingStopPercent:    3,
			TrailingStopActivation: 4,
			TimeLimitMinutes:       5,
			ConcurrentPositions:    1,
			MaxAllocationPercent:   5,
			MaxPositions:           1,
		}, true
	default:
		return RiskParams{}, false
	}
}

// Execution modes an Edge or Strategy may carry.
const (
	ExecutionModeManual        = "manual"
	ExecutionModeAgentDirected = "agent_directed"
	ExecutionModeAutonomous    = "autonomous"
)

type Strategy struct {
	gorm.Model
	StrategyID    string     `gorm:"uniqueIndex;size:64;not null" json:"strategy_id"`
	Name          string     `gorm:"uniqueIndex;not null" json:"name"`
	StrategyType  string     `gorm:"size:40;not null" json:"strategy_type"`
	VenueTypes    JSONB      `gorm:"type:jsonb" json:"venue_types"`
	ExecutionMode string     `gorm:"size:20;not null;default:'manual'" json:"execution_mode"`
	IsActive      bool       `gorm:"default:false" json:"is_active"`
	RiskParams    JSONB      `gorm:"type:jsonb" json:"risk_params"`
	Stats         JSONB      `gorm:"type:jsonb" json:"stats"`
	CreatedAt     time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// VenueTypeList decodes the VenueTypes JSONB column into a string slice.
func (s *Strategy) VenueTypeList() []string {
	raw, ok := s.VenueTypes["values"]
	if !ok {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if str, ok := it.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// Risk decodes the RiskParams JSONB column.
func (s *Strategy) Risk() RiskParams {
	var rp RiskParams
	b, err := json.Marshal(map[string]interface{}(s.RiskParams))
	if err != nil {
		return rp
	}
	_ = json.Unmarshal(b, &rp)
	return rp
}

// CanAutoExecute mirrors the strategy engine's can_auto_execute predicate.
func (s *Strategy) CanAutoExecute() bool {
	if !s.IsActive {
		return false
	}
	risk := s.Risk()
	return s.ExecutionMode == ExecutionModeAutonomous || risk.AutoExecuteEnabled
}
