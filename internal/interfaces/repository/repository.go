// Package repository declares the persistence contracts core components
// depend on, so the executor/position/strategy/consensus packages never
// import gorm.io/gorm directly.
package repository

import "ares_api/internal/models"

type StrategyRepository interface {
	Create(s *models.Strategy) error
	Update(s *models.Strategy) error
	GetByStrategyID(strategyID string) (*models.Strategy, error)
	ListActive() ([]models.Strategy, error)
	ListAll() ([]models.Strategy, error)
	Delete(strategyID string) error
}

type EdgeRepository interface {
	Create(e *models.Edge) error
	Update(e *models.Edge) error
	GetByEdgeID(edgeID string) (*models.Edge, error)
	ListByStatus(status string) ([]models.Edge, error)
	ListExpired() ([]models.Edge, error)
}

type PositionRepository interface {
	Create(p *models.Position) error
	Update(p *models.Position) error
	GetByPositionID(positionID string) (*models.Position, error)
	ListOpen() ([]models.Position, error)
	ListByStrategy(strategyID string) ([]models.Position, error)
}

type TradeRepository interface {
	Create(t *models.Trade) error
	Update(t *models.Trade) error
	GetBySignature(signature string) (*models.Trade, error)
	ListByPosition(positionID string) ([]models.Trade, error)
}

type ConsensusRepository interface {
	CreateDecision(d *models.ConsensusDecision) error
	GetDecisionByEdgeID(edgeID string) (*models.ConsensusDecision, error)
	CreateReview(r *models.ReviewResult) error
	ListRecentReviews(limit int) ([]models.ReviewResult, error)
}
