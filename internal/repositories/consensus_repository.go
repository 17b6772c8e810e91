package repositories

import (
	repo "ares_api/internal/interfaces/repository"
	"ares_api/internal/models"

	"gorm.io/gorm"
)

type ConsensusRepository struct {
	db *gorm.DB
}

func NewConsensusRepository(db *gorm.DB) repo.ConsensusRepository {
	return &ConsensusRepository{db: db}
}

func (r *ConsensusRepository) CreateDecision(d *models.ConsensusDecision) error {
	return r.db.Create(d).Error
}

func (r *ConsensusRepository) GetDecisionByEdgeID(edgeID string) (*models.ConsensusDecision, error) {
	var d models.ConsensusDecision
	if err := r.db.Where("edge_id = ?", edgeID).Order("requested_at desc").First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *ConsensusRepository) CreateReview(rev *models.ReviewResult) error {
	return r.db.Create(rev).Error
}

func (r *ConsensusRepository) ListRecentReviews(limit int) ([]models.ReviewResult, error) {
	var reviews []models.ReviewResult
	err := r.db.Order("generated_at desc").Limit(limit).Find(&reviews).Error
	return reviews, err
}
