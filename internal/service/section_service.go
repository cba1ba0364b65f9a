package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/geometria-labs/geometria-api/internal/dto"
	"github.com/geometria-labs/geometria-api/internal/models"
	"github.com/geometria-labs/geometria-api/internal/repository"
)

// ErrWorksheetNotFound indicates the assignment's worksheet definition is missing.
var ErrWorksheetNotFound = errors.New("worksheet not found")

// ErrSectionSubmissionSubmitted indicates a submitted section worksheet cannot change.
var ErrSectionSubmissionSubmitted = errors.New("section submission already submitted")

// SectionService owns the section-based worksheet variant: a linear,
// content-defined list of sections instead of the fixed stage flow. Response
// payloads are opaque to this service; they are stored by section key as sent.
type SectionService interface {
	FetchWorksheetAndSubmission(ctx context.Context, assignmentID, studentID uint) (dto.SectionWorksheetResponse, error)
	SaveSection(ctx context.Context, studentID, assignmentID uint, index int, payload dto.SectionSaveRequest) (dto.SectionSubmissionResponse, error)
	GoToSection(ctx context.Context, studentID, assignmentID uint, index int) (dto.SectionSubmissionResponse, error)
	Submit(ctx context.Context, studentID, assignmentID uint) (dto.SectionSubmissionResponse, error)
}

type sectionService struct {
	content     ContentService
	submissions repository.SectionSubmissionRepository
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSectionService constructs a SectionService instance.
func NewSectionService(content ContentService, submissionRepo repository.SectionSubmissionRepository, logger zerolog.Logger) SectionService {
	return &sectionService{
		content:     content,
		submissions: submissionRepo,
		logger:      logger.With().Str("component", "section_service").Logger(),
		now:         time.Now,
	}
}

func (s *sectionService) FetchWorksheetAndSubmission(ctx context.Context, assignmentID, studentID uint) (dto.SectionWorksheetResponse, error) {
	if studentID == 0 {
		return dto.SectionWorksheetResponse{}, ErrAuthRequired
	}

	worksheet, err := s.content.GetWorksheet(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SectionWorksheetResponse{}, ErrWorksheetNotFound
		}
		return dto.SectionWorksheetResponse{}, err
	}

	submission, err := s.getOrCreate(ctx, assignmentID, studentID)
	if err != nil {
		return dto.SectionWorksheetResponse{}, err
	}

	return dto.SectionWorksheetResponse{
		Worksheet:  dto.NewWorksheetResponse(worksheet),
		Submission: dto.NewSectionSubmissionResponse(submission),
	}, nil
}

func (s *sectionService) SaveSection(ctx context.Context, studentID, assignmentID uint, index int, payload dto.SectionSaveRequest) (dto.SectionSubmissionResponse, error) {
	submission, err := s.ownedSubmission(ctx, studentID, assignmentID)
	if err != nil {
		return dto.SectionSubmissionResponse{}, err
	}

	if submission.IsSubmitted() {
		return dto.SectionSubmissionResponse{}, ErrSectionSubmissionSubmitted
	}

	submission.SetResponse(index, payload.Response)
	s.markSectionCompleted(&submission, index)

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SectionSubmissionResponse{}, err
	}

	return dto.NewSectionSubmissionResponse(submission), nil
}

// GoToSection persists the learner's section pointer. The index is not
// bounds-checked here; callers must keep it within the worksheet's section list.
func (s *sectionService) GoToSection(ctx context.Context, studentID, assignmentID uint, index int) (dto.SectionSubmissionResponse, error) {
	submission, err := s.ownedSubmission(ctx, studentID, assignmentID)
	if err != nil {
		return dto.SectionSubmissionResponse{}, err
	}

	submission.CurrentSection = index

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SectionSubmissionResponse{}, err
	}

	return dto.NewSectionSubmissionResponse(submission), nil
}

func (s *sectionService) Submit(ctx context.Context, studentID, assignmentID uint) (dto.SectionSubmissionResponse, error) {
	submission, err := s.ownedSubmission(ctx, studentID, assignmentID)
	if err != nil {
		return dto.SectionSubmissionResponse{}, err
	}

	if submission.IsSubmitted() {
		return dto.NewSectionSubmissionResponse(submission), nil
	}

	now := s.now().UTC()
	submission.Status = models.SectionSubmissionStatusSubmitted
	submission.SubmittedAt = &now

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SectionSubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("assignment_id", assignmentID).
		Msg("section submission finalized")

	return dto.NewSectionSubmissionResponse(submission), nil
}

func (s *sectionService) getOrCreate(ctx context.Context, assignmentID, studentID uint) (models.SectionSubmission, error) {
	submission, err := s.submissions.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
	if err == nil {
		return submission, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.SectionSubmission{}, err
	}

	submission = models.SectionSubmission{
		AssignmentID:   assignmentID,
		StudentID:      studentID,
		CurrentSection: 0,
		Status:         models.SectionSubmissionStatusDraft,
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		return models.SectionSubmission{}, err
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("assignment_id", assignmentID).
		Uint("student_id", studentID).
		Msg("section submission created")

	return submission, nil
}

func (s *sectionService) ownedSubmission(ctx context.Context, studentID, assignmentID uint) (models.SectionSubmission, error) {
	if studentID == 0 {
		return models.SectionSubmission{}, ErrAuthRequired
	}

	submission, err := s.submissions.GetByAssignmentAndStudent(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.SectionSubmission{}, ErrNoActiveSubmission
		}
		return models.SectionSubmission{}, err
	}

	return submission, nil
}

func (s *sectionService) markSectionCompleted(submission *models.SectionSubmission, index int) {
	var completed []int
	if len(submission.CompletedSections) > 0 {
		if err := json.Unmarshal(submission.CompletedSections, &completed); err != nil {
			completed = nil
		}
	}
	for _, existing := range completed {
		if existing == index {
			return
		}
	}
	completed = append(completed, index)
	if data, err := json.Marshal(completed); err == nil {
		submission.CompletedSections = datatypes.JSON(data)
	}
}
