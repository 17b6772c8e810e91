package models

import "time"

// Edge status lattice. Terminal states: Executed, Expired, Failed, Rejected.
const (
	EdgeStatusDetected       = "detected"
	EdgeStatusPendingApprove = "pending_approval"
	EdgeStatusApproved       = "approved"
	EdgeStatusExecuting      = "executing"
	EdgeStatusExecuted       = "executed"
	EdgeStatusExpired        = "expired"
	EdgeStatusFailed         = "failed"
	EdgeStatusRejected       = "rejected"
)

// Atomicity describes how much of a route executes as one unit.
const (
	AtomicityFully    = "fully"
	AtomicityPartial  = "partially"
	AtomicityNon      = "non"
)

// Edge is a detected trading opportunity awaiting disposition.
type Edge struct {
	EdgeID                 string                 `gorm:"primaryKey;size:64" json:"edge_id"`
	StrategyID             string                 `gorm:"index;size:64" json:"strategy_id,omitempty"`
	EdgeType               string                 `gorm:"size:40;not null" json:"edge_type"`
	ExecutionMode          string                 `gorm:"size:20;not null" json:"execution_mode"`
	Atomicity              string                 `gorm:"size:10;not null" json:"atomicity"`
	EstimatedProfitLamports int64                 `json:"estimated_profit_lamports,omitempty"`
	RiskScore              float64                `json:"risk_score,omitempty"`
	RouteData              JSONB                  `gorm:"type:jsonb" json:"route_data"`
	Status                 string                 `gorm:"size:20;not null;index" json:"status"`
	TokenMint              string                 `gorm:"size:64;index" json:"token_mint,omitempty"`
	VenueType              string                 `gorm:"size:20" json:"venue_type"`
	CreatedAt              time.Time              `json:"created_at"`
	ExpiresAt              *time.Time             `json:"expires_at,omitempty"`
}

// terminalEdgeStates enumerates the Edge status lattice's terminal members.
var terminalEdgeStates = map[string]bool{
	EdgeStatusExecuted: true,
	EdgeStatusExpired:  true,
	EdgeStatusFailed:   true,
	EdgeStatusRejected: true,
}

func (e *Edge) IsTerminal() bool {
	return terminalEdgeStates[e.Status]
}
