package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/geometria-labs/geometria-api/internal/models"
)

// ErrStaleSubmission indicates a versioned update lost against a concurrent writer.
var ErrStaleSubmission = errors.New("submission was modified concurrently")

// WorksheetSubmissionRepository defines data operations for worksheet submissions.
type WorksheetSubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.WorksheetSubmission, error)
	GetLatestOpen(ctx context.Context, studentID uint) (models.WorksheetSubmission, error)
	Create(ctx context.Context, submission *models.WorksheetSubmission) error
	// Update persists the submission guarded by its version token. The version
	// is incremented on success; ErrStaleSubmission is returned when another
	// writer got there first.
	Update(ctx context.Context, submission *models.WorksheetSubmission) error
}

type worksheetSubmissionRepository struct {
	db *gorm.DB
}

// NewWorksheetSubmissionRepository instantiates the repository.
func NewWorksheetSubmissionRepository(db *gorm.DB) WorksheetSubmissionRepository {
	return &worksheetSubmissionRepository{db: db}
}

func (r *worksheetSubmissionRepository) GetByID(ctx context.Context, id uint) (models.WorksheetSubmission, error) {
	var submission models.WorksheetSubmission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.WorksheetSubmission{}, err
	}

	return submission, nil
}

func (r *worksheetSubmissionRepository) GetLatestOpen(ctx context.Context, studentID uint) (models.WorksheetSubmission, error) {
	var submission models.WorksheetSubmission
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("is_completed = ?", false).
		Order("created_at DESC").
		First(&submission).Error; err != nil {
		return models.WorksheetSubmission{}, err
	}

	return submission, nil
}

func (r *worksheetSubmissionRepository) Create(ctx context.Context, submission *models.WorksheetSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *worksheetSubmissionRepository) Update(ctx context.Context, submission *models.WorksheetSubmission) error {
	currentVersion := submission.Version
	submission.Version = currentVersion + 1

	result := r.db.WithContext(ctx).
		Model(&models.WorksheetSubmission{}).
		Where("id = ?", submission.ID).
		Where("version = ?", currentVersion).
		Updates(map[string]interface{}{
			"stage_data":       submission.StageData,
			"current_stage":    submission.CurrentStage,
			"completed_stages": submission.CompletedStages,
			"is_completed":     submission.IsCompleted,
			"last_auto_save":   submission.LastAutoSave,
			"submitted_at":     submission.SubmittedAt,
			"completed_at":     submission.CompletedAt,
			"version":          submission.Version,
		})
	if result.Error != nil {
		submission.Version = currentVersion
		return result.Error
	}

	if result.RowsAffected == 0 {
		submission.Version = currentVersion
		return ErrStaleSubmission
	}

	return nil
}
