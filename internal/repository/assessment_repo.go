package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/geometria-labs/geometria-api/internal/models"
)

// ErrAssessmentFinalized indicates a terminal update targeted a record that is no
// longer in processing state.
var ErrAssessmentFinalized = errors.New("assessment record already finalized")

// AssessmentRepository defines data operations for assessment records. Terminal
// updates are guarded in SQL so that completed and failed are absorbing states
// regardless of caller interleaving.
type AssessmentRepository interface {
	Create(ctx context.Context, record *models.AssessmentRecord) error
	GetByID(ctx context.Context, id uint) (models.AssessmentRecord, error)
	ListByStudent(ctx context.Context, studentID uint, limit, offset int) ([]models.AssessmentRecord, error)
	MarkCompleted(ctx context.Context, id uint, score int, feedback, reasoning datatypes.JSON, processingTimeMs int64) error
	MarkFailed(ctx context.Context, id uint, reason string) error
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository instantiates the repository.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) Create(ctx context.Context, record *models.AssessmentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *assessmentRepository) GetByID(ctx context.Context, id uint) (models.AssessmentRecord, error) {
	var record models.AssessmentRecord
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return models.AssessmentRecord{}, err
	}

	return record, nil
}

func (r *assessmentRepository) ListByStudent(ctx context.Context, studentID uint, limit, offset int) ([]models.AssessmentRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []models.AssessmentRecord
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r *assessmentRepository) MarkCompleted(ctx context.Context, id uint, score int, feedback, reasoning datatypes.JSON, processingTimeMs int64) error {
	return r.finalize(ctx, id, map[string]interface{}{
		"status":             models.AssessmentStatusCompleted,
		"score":              score,
		"feedback":           feedback,
		"reasoning":          reasoning,
		"processing_time_ms": processingTimeMs,
		"updated_at":         time.Now().UTC(),
	})
}

func (r *assessmentRepository) MarkFailed(ctx context.Context, id uint, reason string) error {
	return r.finalize(ctx, id, map[string]interface{}{
		"status":        models.AssessmentStatusFailed,
		"error_message": reason,
		"updated_at":    time.Now().UTC(),
	})
}

func (r *assessmentRepository) finalize(ctx context.Context, id uint, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.AssessmentRecord{}).
		Where("id = ?", id).
		Where("status = ?", models.AssessmentStatusProcessing).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrAssessmentFinalized
	}

	return nil
}
