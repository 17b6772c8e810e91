package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position lifecycle states.
const (
	PositionStatusOpen            = "open"
	PositionStatusPendingExit     = "pending_exit"
	PositionStatusPartiallyExited = "partially_exited"
	PositionStatusClosed          = "closed"
	PositionStatusFailed          = "failed"
	PositionStatusOrphaned        = "orphaned"
)

// Exit reasons, evaluated in this priority order by the position manager.
const (
	ExitReasonStopLoss     = "StopLoss"
	ExitReasonTakeProfit   = "TakeProfit"
	ExitReasonTrailingStop = "TrailingStop"
	ExitReasonTimeLimit    = "TimeLimit"
)

// PartialExit records one incremental exit out of a position.
type PartialExit struct {
	ExitPercent  float64         `json:"exit_percent"`
	ExitPrice    float64         `json:"exit_price"`
	AmountBase   decimal.Decimal `json:"amount_base"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
	Reason       string          `json:"reason"`
	TxSignature  string          `json:"tx_signature,omitempty"`
	ExitedAt     time.Time       `json:"exited_at"`
}

// ExitConfig snapshots the risk parameters this position was opened under,
// so later exit-rule evaluation is independent of subsequent strategy edits.
type ExitConfig struct {
	MaxDrawdownPercent     float64 `json:"max_drawdown_percent"`
	TakeProfitPercent      float64 `json:"take_profit_percent"`
	TrailingStopPercent    float64 `json:"trailing_stop_percent"`
	TrailingStopActivation float64 `json:"trailing_stop_activation_percent"`
	TimeLimitMinutes       int     `json:"time_limit_minutes"`
	MomentumAdaptiveExits  bool    `json:"momentum_adaptive_exits"`
}

// Position is an open or closed holding of a bonding-curve token.
type Position struct {
	PositionID           string          `gorm:"primaryKey;size:64" json:"position_id"`
	EdgeID               string          `gorm:"index;size:64" json:"edge_id"`
	StrategyID           string          `gorm:"index;size:64" json:"strategy_id"`
	TokenMint            string          `gorm:"index;size:64;not null" json:"token_mint"`
	TokenSymbol          string          `gorm:"size:32" json:"token_symbol,omitempty"`
	VenueType            string          `gorm:"size:20" json:"venue_type"`
	EntryAmountBase      decimal.Decimal `gorm:"type:decimal(24,9)" json:"entry_amount_base"`
	EntryTokenAmount     uint64          `json:"entry_token_amount"`
	EntryPrice           float64         `json:"entry_price"`
	EntryTime            time.Time       `json:"entry_time"`
	EntryTxSignature     string          `gorm:"size:128" json:"entry_tx_signature,omitempty"`
	CurrentPrice         float64         `json:"current_price"`
	CurrentValueBase     decimal.Decimal `gorm:"type:decimal(24,9)" json:"current_value_base"`
	UnrealizedPnL        decimal.Decimal `gorm:"type:decimal(24,9)" json:"unrealized_pnl"`
	UnrealizedPnLPercent float64         `json:"unrealized_pnl_percent"`
	HighWaterMark        float64         `json:"high_water_mark"`
	ExitConfig           JSONB           `gorm:"type:jsonb" json:"exit_config"`
	PartialExits         JSONB           `gorm:"type:jsonb" json:"partial_exits"`
	Status               string          `gorm:"size:20;not null;index" json:"status"`
	RemainingAmountBase  decimal.Decimal `gorm:"type:decimal(24,9)" json:"remaining_amount_base"`
	RemainingTokenAmount uint64          `json:"remaining_token_amount"`
	CreatedAt            time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// IsOpen matches §3's invariant: status = open iff some remaining amount
// is still outstanding and no terminal exit has been recorded.
func (p *Position) IsOpen() bool {
	if p.Status == PositionStatusClosed || p.Status == PositionStatusFailed {
		return false
	}
	return p.RemainingAmountBase.IsPositive() || p.RemainingTokenAmount > 0
}
