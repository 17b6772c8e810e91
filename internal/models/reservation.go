package models

import "time"

// Reservation is a capital hold tied to a specific position, released on
// any terminal position transition. ReservationID mirrors the position_id
// it guards 1:1.
type Reservation struct {
	ReservationID string    `json:"reservation_id"`
	StrategyID    string    `json:"strategy_id"`
	AmountLamports uint64   `json:"amount_lamports"`
	CreatedAt     time.Time `json:"created_at"`
}

// StrategyAllocation tracks one strategy's capital ceiling and live usage
// inside the capital manager.
type StrategyAllocation struct {
	StrategyID           string
	MaxAllocationPercent float64
	MaxPositions         int
	CurrentReserved      uint64
	ActivePositions      int
}

// DailyUsage is reset at the UTC calendar-day boundary.
type DailyUsage struct {
	Date             string `json:"date"` // YYYY-MM-DD, UTC
	TotalVolumeLamports uint64 `json:"total_volume_lamports"`
	TransactionCount int    `json:"transaction_count"`
}
