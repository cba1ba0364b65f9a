package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/geometria-labs/geometria-api/internal/dto"
	"github.com/geometria-labs/geometria-api/internal/models"
	"github.com/geometria-labs/geometria-api/internal/repository"
)

// ErrAuthRequired indicates no authenticated learner was supplied.
var ErrAuthRequired = errors.New("authentication required")

// ErrNoActiveSubmission indicates the referenced submission does not exist or
// does not belong to the caller.
var ErrNoActiveSubmission = errors.New("no active submission")

// ErrSubmissionCompleted indicates a finalized submission cannot be mutated.
var ErrSubmissionCompleted = errors.New("submission already completed")

// ErrInvalidStage indicates the stage number is outside the worksheet's range.
var ErrInvalidStage = errors.New("invalid stage number")

// WorksheetService owns a learner's progress through the fixed-stage guided
// worksheet: resume-or-create, stage completion, best-effort auto-save and
// irreversible finalization.
type WorksheetService interface {
	Initialize(ctx context.Context, studentID uint, payload dto.WorksheetInitializeRequest) (dto.WorksheetSubmissionResponse, error)
	Load(ctx context.Context, studentID uint, submissionID *uint) (dto.WorksheetSubmissionResponse, error)
	UpdateStage(ctx context.Context, studentID, submissionID uint, stage int, payload dto.StageUpdateRequest) (dto.WorksheetSubmissionResponse, error)
	AutoSave(ctx context.Context, studentID, submissionID uint, payload dto.AutoSaveRequest) (dto.WorksheetSubmissionResponse, error)
	Submit(ctx context.Context, studentID, submissionID uint) (dto.WorksheetSubmissionResponse, error)
	Progress(ctx context.Context, studentID, submissionID uint) (dto.ProgressResponse, error)
}

type worksheetService struct {
	submissions repository.WorksheetSubmissionRepository
	sections    repository.SectionSubmissionRepository
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewWorksheetService constructs a WorksheetService instance.
func NewWorksheetService(submissionRepo repository.WorksheetSubmissionRepository, sectionRepo repository.SectionSubmissionRepository, validate *validator.Validate, logger zerolog.Logger) WorksheetService {
	return &worksheetService{
		submissions: submissionRepo,
		sections:    sectionRepo,
		validator:   validate,
		logger:      logger.With().Str("component", "worksheet_service").Logger(),
		now:         time.Now,
	}
}

func (s *worksheetService) Initialize(ctx context.Context, studentID uint, payload dto.WorksheetInitializeRequest) (dto.WorksheetSubmissionResponse, error) {
	if studentID == 0 {
		return dto.WorksheetSubmissionResponse{}, ErrAuthRequired
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.WorksheetSubmissionResponse{}, err
	}

	// Idempotent resume: an open attempt wins over starting a new one.
	existing, err := s.submissions.GetLatestOpen(ctx, studentID)
	if err == nil {
		return dto.NewWorksheetSubmissionResponse(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.WorksheetSubmissionResponse{}, err
	}

	now := s.now().UTC()
	submission := models.WorksheetSubmission{
		StudentID:     studentID,
		WorksheetType: payload.WorksheetType,
		StageCount:    models.DefaultStageCount,
		CurrentStage:  1,
		StartedAt:     now,
	}
	submission.SetStageEntries(map[string]models.StageEntry{})

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.WorksheetSubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("student_id", studentID).
		Str("worksheet_type", submission.WorksheetType).
		Msg("worksheet submission started")

	return dto.NewWorksheetSubmissionResponse(submission), nil
}

func (s *worksheetService) Load(ctx context.Context, studentID uint, submissionID *uint) (dto.WorksheetSubmissionResponse, error) {
	if studentID == 0 {
		return dto.WorksheetSubmissionResponse{}, ErrAuthRequired
	}

	if submissionID != nil {
		submission, err := s.ownedSubmission(ctx, studentID, *submissionID)
		if err == nil {
			return dto.NewWorksheetSubmissionResponse(submission), nil
		}
		if !errors.Is(err, ErrNoActiveSubmission) {
			return dto.WorksheetSubmissionResponse{}, err
		}
	} else {
		submission, err := s.submissions.GetLatestOpen(ctx, studentID)
		if err == nil {
			return dto.NewWorksheetSubmissionResponse(submission), nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.WorksheetSubmissionResponse{}, err
		}
	}

	// Never "not found": fall back to starting a fresh attempt.
	return s.Initialize(ctx, studentID, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
}

func (s *worksheetService) UpdateStage(ctx context.Context, studentID, submissionID uint, stage int, payload dto.StageUpdateRequest) (dto.WorksheetSubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.WorksheetSubmissionResponse{}, err
	}

	submission, err := s.ownedSubmission(ctx, studentID, submissionID)
	if err != nil {
		return dto.WorksheetSubmissionResponse{}, err
	}

	if submission.IsCompleted {
		return dto.WorksheetSubmissionResponse{}, ErrSubmissionCompleted
	}

	if stage < 1 || stage > submission.StageCount {
		return dto.WorksheetSubmissionResponse{}, ErrInvalidStage
	}

	completedAt := s.now().UTC()
	submission.MergeStage(stage, payload.Data, &completedAt)
	submission.AddCompletedStage(stage)
	submission.CurrentStage = stage + 1
	if submission.CurrentStage > submission.StageCount {
		submission.CurrentStage = submission.StageCount
	}

	// Stage completion must be durable before the client may navigate on; any
	// store failure, including a lost version race, is surfaced to the caller.
	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.WorksheetSubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Int("stage", stage).
		Int("current_stage", submission.CurrentStage).
		Msg("worksheet stage completed")

	return dto.NewWorksheetSubmissionResponse(submission), nil
}

func (s *worksheetService) AutoSave(ctx context.Context, studentID, submissionID uint, payload dto.AutoSaveRequest) (dto.WorksheetSubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.WorksheetSubmissionResponse{}, err
	}

	submission, err := s.ownedSubmission(ctx, studentID, submissionID)
	if err != nil {
		return dto.WorksheetSubmissionResponse{}, err
	}

	if submission.IsCompleted {
		return dto.NewWorksheetSubmissionResponse(submission), nil
	}

	saved := submission
	autoSavedAt := s.now().UTC()
	// Auto-save only merges draft data: no completion timestamp is created and
	// neither completed stages nor the current stage move.
	saved.MergeStage(payload.Stage, payload.Data, nil)
	saved.LastAutoSave = &autoSavedAt

	if err := s.submissions.Update(ctx, &saved); err != nil {
		s.logger.Warn().Err(err).
			Uint("submission_id", submission.ID).
			Int("stage", payload.Stage).
			Msg("auto-save failed")
		return dto.NewWorksheetSubmissionResponse(submission), nil
	}

	return dto.NewWorksheetSubmissionResponse(saved), nil
}

func (s *worksheetService) Submit(ctx context.Context, studentID, submissionID uint) (dto.WorksheetSubmissionResponse, error) {
	submission, err := s.ownedSubmission(ctx, studentID, submissionID)
	if err != nil {
		return dto.WorksheetSubmissionResponse{}, err
	}

	if submission.IsCompleted {
		return dto.NewWorksheetSubmissionResponse(submission), nil
	}

	now := s.now().UTC()
	submission.IsCompleted = true
	submission.SubmittedAt = &now
	submission.CompletedAt = &now

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.WorksheetSubmissionResponse{}, err
	}

	if submission.AssignmentID != nil {
		s.finalizeSectionSubmission(ctx, studentID, *submission.AssignmentID, now)
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("student_id", studentID).
		Msg("worksheet submission finalized")

	return dto.NewWorksheetSubmissionResponse(submission), nil
}

func (s *worksheetService) Progress(ctx context.Context, studentID, submissionID uint) (dto.ProgressResponse, error) {
	submission, err := s.ownedSubmission(ctx, studentID, submissionID)
	if err != nil {
		if errors.Is(err, ErrNoActiveSubmission) {
			return dto.ProgressResponse{Completed: 0, Total: models.DefaultStageCount, Percentage: 0}, nil
		}
		return dto.ProgressResponse{}, err
	}

	completed := submission.CompletedWithTimestamp()
	total := submission.StageCount
	if total <= 0 {
		total = models.DefaultStageCount
	}

	return dto.ProgressResponse{
		Completed:  completed,
		Total:      total,
		Percentage: int(math.Round(100 * float64(completed) / float64(total))),
	}, nil
}

func (s *worksheetService) ownedSubmission(ctx context.Context, studentID, submissionID uint) (models.WorksheetSubmission, error) {
	if studentID == 0 {
		return models.WorksheetSubmission{}, ErrAuthRequired
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.WorksheetSubmission{}, ErrNoActiveSubmission
		}
		return models.WorksheetSubmission{}, err
	}

	if submission.StudentID != studentID {
		return models.WorksheetSubmission{}, ErrNoActiveSubmission
	}

	return submission, nil
}

func (s *worksheetService) finalizeSectionSubmission(ctx context.Context, studentID, assignmentID uint, now time.Time) {
	section, err := s.sections.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to load linked section submission")
		}
		return
	}

	if section.IsSubmitted() {
		return
	}

	section.Status = models.SectionSubmissionStatusSubmitted
	section.SubmittedAt = &now
	if err := s.sections.Update(ctx, &section); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to finalize linked section submission")
	}
}
