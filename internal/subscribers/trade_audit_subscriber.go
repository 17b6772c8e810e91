package subscribers

import (
	"encoding/json"
	"log"
	"time"

	"ares_api/internal/eventbus"

	"gorm.io/gorm"
)

// TradeAuditLog is an immutable audit entry for one edge.executed event.
type TradeAuditLog struct {
	ID           uint      `gorm:"primaryKey"`
	EdgeID       string    `gorm:"index;size:64"`
	PositionID   string    `gorm:"size:64"`
	Signature    string    `gorm:"size:128"`
	TokensOut    uint64
	SOLSpent     uint64
	EntryPrice   float64
	Timestamp    time.Time `gorm:"index"`
	RawEventData string    `gorm:"type:jsonb"`
	CreatedAt    time.Time
}

// TradeAuditSubscriber writes one audit row per executed edge.
type TradeAuditSubscriber struct {
	db *gorm.DB
}

func NewTradeAuditSubscriber(db *gorm.DB) *TradeAuditSubscriber {
	if err := db.AutoMigrate(&TradeAuditLog{}); err != nil {
		log.Printf("[audit] failed to migrate trade_audit_logs: %v", err)
	}
	return &TradeAuditSubscriber{db: db}
}

func (s *TradeAuditSubscriber) handleEdgeExecuted(env eventbus.Envelope) {
	raw, err := json.Marshal(env.Data)
	if err != nil {
		log.Printf("[audit] failed to marshal edge.executed payload: %v", err)
		return
	}

	var data eventbus.EdgeExecutedData
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Printf("[audit] failed to decode edge.executed payload: %v", err)
		return
	}

	entry := TradeAuditLog{
		EdgeID:       data.EdgeID,
		PositionID:   data.PositionID,
		Signature:    data.Signature,
		TokensOut:    data.TokensOut,
		SOLSpent:     data.SOLSpent,
		EntryPrice:   data.EntryPrice,
		Timestamp:    env.Timestamp,
		RawEventData: string(raw),
	}

	if err := s.db.Create(&entry).Error; err != nil {
		log.Printf("[audit] failed to save audit log for edge %s: %v", data.EdgeID, err)
		return
	}
}

// Subscribe registers this subscriber with the bus and runs its delivery
// loop until the bus is closed.
func (s *TradeAuditSubscriber) Subscribe(eb *eventbus.EventBus) {
	sub := eb.Subscribe(eventbus.TopicEdgeExecuted)
	go func() {
		for env := range sub.C {
			s.handleEdgeExecuted(env)
		}
	}()
}
