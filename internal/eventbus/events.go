package eventbus

import "time"

// Topics published across the trading loop (§6). Opaque strings; routing
// is done by consumers filtering on Topic, not by broker-side
// subscription filtering.
const (
	TopicEdgeDetected            = "edge.detected"
	TopicEdgeExecuting           = "edge.executing"
	TopicEdgeExecuted            = "edge.executed"
	TopicEdgeFailed              = "edge.failed"
	TopicEdgeApproved            = "edge.approved"
	TopicEdgeRejected            = "edge.rejected"
	TopicPositionExitCompleted   = "position.exit_completed"
	TopicCurveGraduationImminent = "curve.graduation_imminent"
	TopicCurveGraduating         = "curve.graduating"
	TopicCurveGraduated          = "curve.graduated"
	TopicCurveGraduationFailed   = "curve.graduation_failed"
	TopicConsensusApproved       = "consensus.approved"
	TopicConsensusRejected       = "consensus.rejected"

	EventVersion1 = "v1"
)

// Envelope wraps every published event with a topic and timestamp so a
// lagged subscriber draining the ring buffer can always recover both.
type Envelope struct {
	Topic     string      `json:"topic"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// EdgeDetectedData accompanies TopicEdgeDetected.
type EdgeDetectedData struct {
	EdgeID        string `json:"edge_id"`
	StrategyID    string `json:"strategy_id"`
	ExecutionMode string `json:"execution_mode"`
	TokenMint     string `json:"token_mint"`
	VenueType     string `json:"venue_type"`
}

// EdgeExecutedData accompanies TopicEdgeExecuted.
type EdgeExecutedData struct {
	EdgeID        string  `json:"edge_id"`
	PositionID    string  `json:"position_id"`
	Signature     string  `json:"signature"`
	TokensOut     uint64  `json:"tokens_out"`
	SOLSpent      uint64  `json:"sol_spent_lamports"`
	EntryPrice    float64 `json:"entry_price"`
}

// EdgeFailedData accompanies TopicEdgeFailed.
type EdgeFailedData struct {
	EdgeID string `json:"edge_id"`
	Reason string `json:"reason"`
}

// PositionExitCompletedData accompanies TopicPositionExitCompleted.
type PositionExitCompletedData struct {
	PositionID  string  `json:"position_id"`
	Reason      string  `json:"reason"`
	ExitPercent float64 `json:"exit_percent"`
	Signature   string  `json:"signature"`
	RealizedPnL float64 `json:"realized_pnl"`
}

// GraduationStateChangedData accompanies the curve.graduation_* topics.
type GraduationStateChangedData struct {
	Mint         string  `json:"mint"`
	FromState    string  `json:"from_state"`
	ToState      string  `json:"to_state"`
	Progress     float64 `json:"progress"`
	Significance string  `json:"significance"`
}

// ConsensusDecidedData accompanies consensus.approved / consensus.rejected.
type ConsensusDecidedData struct {
	EdgeID             string  `json:"edge_id"`
	DecisionID         string  `json:"decision_id"`
	WeightedAgreement  float64 `json:"weighted_agreement"`
	WeightedConfidence float64 `json:"weighted_confidence"`
}

func NewEnvelope(topic string, data interface{}) Envelope {
	return Envelope{Topic: topic, Version: EventVersion1, Timestamp: time.Now(), Data: data}
}
