package repositories

import (
	repo "ares_api/internal/interfaces/repository"
	"ares_api/internal/models"

	"gorm.io/gorm"
)

type StrategyRepository struct {
	db *gorm.DB
}

func NewStrategyRepository(db *gorm.DB) repo.StrategyRepository {
	return &StrategyRepository{db: db}
}

func (r *StrategyRepository) Create(s *models.Strategy) error {
	return r.db.Create(s).Error
}

func (r *StrategyRepository) Update(s *models.Strategy) error {
	return r.db.Save(s).Error
}

func (r *StrategyRepository) GetByStrategyID(strategyID string) (*models.Strategy, error) {
	var s models.Strategy
	if err := r.db.Where("strategy_id = ?", strategyID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StrategyRepository) ListActive() ([]models.Strategy, error) {
	var strategies []models.Strategy
	err := r.db.Where("is_active = ?", true).Find(&strategies).Error
	return strategies, err
}

func (r *StrategyRepository) ListAll() ([]models.Strategy, error) {
	var strategies []models.Strategy
	err := r.db.Find(&strategies).Error
	return strategies, err
}

func (r *StrategyRepository) Delete(strategyID string) error {
	return r.db.Where("strategy_id = ?", strategyID).Delete(&models.Strategy{}).Error
}
