package repositories

import (
	repo "ares_api/internal/interfaces/repository"
	"ares_api/internal/models"

	"gorm.io/gorm"
)

type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository(db *gorm.DB) repo.TradeRepository {
	return &TradeRepository{db: db}
}

func (r *TradeRepository) Create(t *models.Trade) error {
	return r.db.Create(t).Error
}

func (r *TradeRepository) Update(t *models.Trade) error {
	return r.db.Save(t).Error
}

func (r *TradeRepository) GetBySignature(signature string) (*models.Trade, error) {
	var t models.Trade
	if err := r.db.Where("signature = ?", signature).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TradeRepository) ListByPosition(positionID string) ([]models.Trade, error) {
	var trades []models.Trade
	err := r.db.Where("position_id = ?", positionID).Order("submitted_at asc").Find(&trades).Error
	return trades, err
}
