package repositories

import (
	"time"

	repo "ares_api/internal/interfaces/repository"
	"ares_api/internal/models"

	"gorm.io/gorm"
)

type EdgeRepository struct {
	db *gorm.DB
}

func NewEdgeRepository(db *gorm.DB) repo.EdgeRepository {
	return &EdgeRepository{db: db}
}

func (r *EdgeRepository) Create(e *models.Edge) error {
	return r.db.Create(e).Error
}

func (r *EdgeRepository) Update(e *models.Edge) error {
	return r.db.Save(e).Error
}

func (r *EdgeRepository) GetByEdgeID(edgeID string) (*models.Edge, error) {
	var e models.Edge
	if err := r.db.Where("edge_id = ?", edgeID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EdgeRepository) ListByStatus(status string) ([]models.Edge, error) {
	var edges []models.Edge
	err := r.db.Where("status = ?", status).Order("created_at desc").Find(&edges).Error
	return edges, err
}

func (r *EdgeRepository) ListExpired() ([]models.Edge, error) {
	var edges []models.Edge
	err := r.db.Where("expires_at IS NOT NULL AND expires_at < ? AND status NOT IN ?",
		time.Now().UTC(), []string{models.EdgeStatusExecuted, models.EdgeStatusRejected, models.EdgeStatusExpired, models.EdgeStatusFailed}).
		Find(&edges).Error
	return edges, err
}
