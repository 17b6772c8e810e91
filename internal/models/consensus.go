package models

import "time"

// ModelVote is one model's response to a consensus query.
type ModelVote struct {
	Model      string        `json:"model"`
	Approved   bool          `json:"approved"`
	Confidence float64       `json:"confidence"`
	Reasoning  string        `json:"reasoning"`
	LatencyMS  int64         `json:"latency_ms"`
}

// ConsensusDecision is the persisted audit record of one approval-mode
// consensus run.
type ConsensusDecision struct {
	DecisionID         string    `gorm:"primaryKey;size:64" json:"decision_id"`
	EdgeID             string    `gorm:"index;size:64" json:"edge_id"`
	RequestedAt        time.Time `json:"requested_at"`
	ModelsQueried      JSONB     `gorm:"type:jsonb" json:"models_queried"`
	ModelsResponded    JSONB     `gorm:"type:jsonb" json:"models_responded"`
	Approved           bool      `json:"approved"`
	WeightedAgreement  float64   `json:"weighted_agreement"`
	WeightedConfidence float64   `json:"weighted_confidence"`
	PerModel           JSONB     `gorm:"type:jsonb" json:"per_model"`
	Threshold          float64   `json:"threshold"`
}

// Recommendation is one actionable item produced by periodic-review mode.
type Recommendation struct {
	Category   string  `json:"category"`
	Target     string  `json:"target"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ReviewResult is the persisted record of one periodic-review run.
type ReviewResult struct {
	ReviewID        string    `gorm:"primaryKey;size:64" json:"review_id"`
	GeneratedAt     time.Time `json:"generated_at"`
	Recommendations JSONB     `gorm:"type:jsonb" json:"recommendations"`
}
