package repositories

import (
	repo "ares_api/internal/interfaces/repository"
	"ares_api/internal/models"

	"gorm.io/gorm"
)

type PositionRepository struct {
	db *gorm.DB
}

func NewPositionRepository(db *gorm.DB) repo.PositionRepository {
	return &PositionRepository{db: db}
}

func (r *PositionRepository) Create(p *models.Position) error {
	return r.db.Create(p).Error
}

func (r *PositionRepository) Update(p *models.Position) error {
	return r.db.Save(p).Error
}

func (r *PositionRepository) GetByPositionID(positionID string) (*models.Position, error) {
	var p models.Position
	if err := r.db.Where("position_id = ?", positionID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PositionRepository) ListOpen() ([]models.Position, error) {
	var positions []models.Position
	err := r.db.Where("status IN ?", []string{models.PositionStatusOpen, models.PositionStatusPendingExit, models.PositionStatusPartiallyExited}).
		Find(&positions).Error
	return positions, err
}

func (r *PositionRepository) ListByStrategy(strategyID string) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.Where("strategy_id = ?", strategyID).Order("created_at desc").Find(&positions).Error
	return positions, err
}
