package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/geometria-labs/geometria-api/internal/models"
)

// WorksheetRepository defines read access to the worksheet content catalog.
type WorksheetRepository interface {
	GetByID(ctx context.Context, id uint) (models.Worksheet, error)
	GetByType(ctx context.Context, geometryType string) (models.Worksheet, error)
	Create(ctx context.Context, worksheet *models.Worksheet) error
}

type worksheetRepository struct {
	db *gorm.DB
}

// NewWorksheetRepository instantiates the repository.
func NewWorksheetRepository(db *gorm.DB) WorksheetRepository {
	return &worksheetRepository{db: db}
}

func (r *worksheetRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Worksheet{}).
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		})
}

func (r *worksheetRepository) GetByID(ctx context.Context, id uint) (models.Worksheet, error) {
	var worksheet models.Worksheet
	if err := r.baseQuery(ctx).First(&worksheet, id).Error; err != nil {
		return models.Worksheet{}, err
	}

	return worksheet, nil
}

func (r *worksheetRepository) GetByType(ctx context.Context, geometryType string) (models.Worksheet, error) {
	var worksheet models.Worksheet
	if err := r.baseQuery(ctx).
		Where("geometry_type = ?", geometryType).
		Order("id ASC").
		First(&worksheet).Error; err != nil {
		return models.Worksheet{}, err
	}

	return worksheet, nil
}

func (r *worksheetRepository) Create(ctx context.Context, worksheet *models.Worksheet) error {
	return r.db.WithContext(ctx).Create(worksheet).Error
}
