package models

import "time"

const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"

	TradeStatusPending   = "pending"
	TradeStatusConfirmed = "confirmed"
	TradeStatusFailed    = "failed"
)

// Trade is one submitted transaction (buy or sell), independent of the
// position it funds or unwinds. A closed position typically has two trade
// rows; a partial exit adds one more.
type Trade struct {
	TradeID           string     `gorm:"primaryKey;size:64" json:"trade_id"`
	PositionID        string     `gorm:"index;size:64" json:"position_id,omitempty"`
	EdgeID            string     `gorm:"index;size:64" json:"edge_id"`
	Mint              string     `gorm:"index;size:64;not null" json:"mint"`
	VenueType         string     `gorm:"size:20" json:"venue_type"`
	Side              string     `gorm:"size:4;not null" json:"side"`
	SOLAmountLamports uint64     `json:"sol_amount_lamports"`
	TokenAmount       uint64     `json:"token_amount"`
	Price             float64    `json:"price"`
	Signature         string     `gorm:"size:128" json:"signature,omitempty"`
	Status            string     `gorm:"size:20;not null;index" json:"status"`
	SubmittedAt       time.Time  `json:"submitted_at"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
}
