package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/geometria-labs/geometria-api/internal/models"
)

// SectionSubmissionRepository defines data operations for section-based submissions.
type SectionSubmissionRepository interface {
	GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.SectionSubmission, error)
	Create(ctx context.Context, submission *models.SectionSubmission) error
	Update(ctx context.Context, submission *models.SectionSubmission) error
}

type sectionSubmissionRepository struct {
	db *gorm.DB
}

// NewSectionSubmissionRepository instantiates the repository.
func NewSectionSubmissionRepository(db *gorm.DB) SectionSubmissionRepository {
	return &sectionSubmissionRepository{db: db}
}

func (r *sectionSubmissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.SectionSubmission, error) {
	var submission models.SectionSubmission
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		First(&submission).Error; err != nil {
		return models.SectionSubmission{}, err
	}

	return submission, nil
}

func (r *sectionSubmissionRepository) Create(ctx context.Context, submission *models.SectionSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *sectionSubmissionRepository) Update(ctx context.Context, submission *models.SectionSubmission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}
