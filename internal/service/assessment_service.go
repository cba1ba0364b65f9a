package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/geometria-labs/geometria-api/internal/dto"
	"github.com/geometria-labs/geometria-api/internal/models"
	"github.com/geometria-labs/geometria-api/internal/observability"
	"github.com/geometria-labs/geometria-api/internal/repository"
	"github.com/geometria-labs/geometria-api/pkg/ai"
)

// ErrUnauthorized indicates the caller has no resolvable learner identity.
var ErrUnauthorized = errors.New("unauthorized")

// ErrMissingFields indicates a required request field is absent.
var ErrMissingFields = errors.New("missing required fields")

// ErrInvalidLessonID indicates the lesson reference cannot be coerced to a numeric id.
var ErrInvalidLessonID = errors.New("invalid lesson id format")

// ErrInvalidRubricID indicates the rubric reference cannot be coerced to a numeric id.
var ErrInvalidRubricID = errors.New("invalid rubric id format")

// ErrStoreUnavailable indicates the assessment record could not be created.
var ErrStoreUnavailable = errors.New("failed to create assessment record")

// ErrModelFailed indicates the external assessment service call failed.
var ErrModelFailed = errors.New("ai evaluation failed")

// ErrAssessmentNotFound indicates the assessment record does not exist for the caller.
var ErrAssessmentNotFound = errors.New("assessment not found")

// ErrEvaluatorUnavailable indicates no AI evaluator is configured.
var ErrEvaluatorUnavailable = errors.New("evaluator unavailable")

// AssessmentService owns the grading request lifecycle: record creation, the
// single external model call, tolerant parsing and the terminal status update.
type AssessmentService interface {
	Evaluate(ctx context.Context, studentID uint, payload dto.AssessmentEvaluateRequest) (dto.AssessmentEvaluateResponse, error)
	Get(ctx context.Context, studentID, id uint) (dto.AssessmentRecordResponse, error)
	List(ctx context.Context, studentID uint, limit, offset int) ([]dto.AssessmentRecordResponse, error)
}

type assessmentService struct {
	records   repository.AssessmentRepository
	rubrics   repository.RubricRepository
	evaluator ai.Evaluator
	notifier  AssessmentNotifier
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAssessmentService constructs an AssessmentService instance.
func NewAssessmentService(recordRepo repository.AssessmentRepository, rubricRepo repository.RubricRepository, evaluator ai.Evaluator, notifier AssessmentNotifier, logger zerolog.Logger) AssessmentService {
	return &assessmentService{
		records:   recordRepo,
		rubrics:   rubricRepo,
		evaluator: evaluator,
		notifier:  notifier,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "assessment_service").Logger(),
		now:       time.Now,
	}
}

func (s *assessmentService) Evaluate(ctx context.Context, studentID uint, payload dto.AssessmentEvaluateRequest) (dto.AssessmentEvaluateResponse, error) {
	// Auth and validation reject before any persistent side effect.
	if studentID == 0 {
		return dto.AssessmentEvaluateResponse{}, ErrUnauthorized
	}

	problemText := strings.TrimSpace(s.sanitizer.Sanitize(payload.ProblemText))
	studentAnswer := strings.TrimSpace(s.sanitizer.Sanitize(payload.StudentAnswer))
	geometryType := strings.ToLower(strings.TrimSpace(payload.GeometryType))

	if problemText == "" || studentAnswer == "" || geometryType == "" || payload.LessonID.IsZero() {
		return dto.AssessmentEvaluateResponse{}, ErrMissingFields
	}

	lessonID, err := payload.LessonID.Uint()
	if err != nil {
		return dto.AssessmentEvaluateResponse{}, ErrInvalidLessonID
	}

	var rubricID *uint
	if !payload.RubricID.IsZero() {
		id, err := payload.RubricID.Uint()
		if err != nil {
			return dto.AssessmentEvaluateResponse{}, ErrInvalidRubricID
		}
		rubricID = &id
	}

	if s.evaluator == nil {
		return dto.AssessmentEvaluateResponse{}, ErrEvaluatorUnavailable
	}

	record := models.AssessmentRecord{
		StudentID:     studentID,
		LessonID:      lessonID,
		RubricID:      rubricID,
		ProblemText:   problemText,
		StudentAnswer: studentAnswer,
		GeometryType:  geometryType,
		Status:        models.AssessmentStatusProcessing,
	}

	// The learner's answer is durable from here on: a later model failure marks
	// the record failed but never loses the submitted text.
	if err := s.records.Create(ctx, &record); err != nil {
		return dto.AssessmentEvaluateResponse{}, fmt.Errorf("%w: %s", ErrStoreUnavailable, err.Error())
	}

	prompt := ai.BuildEvaluationPrompt(ai.EvaluationInput{
		ProblemText:   problemText,
		StudentAnswer: studentAnswer,
		GeometryType:  geometryType,
		Criteria:      s.rubricCriteria(ctx, rubricID),
	})

	start := s.now()
	raw, err := s.evaluator.Evaluate(ctx, prompt)
	processingTime := time.Since(start).Milliseconds()

	if err != nil {
		s.logger.Error().Err(err).Uint("assessment_id", record.ID).Msg("model invocation failed")
		if markErr := s.records.MarkFailed(ctx, record.ID, err.Error()); markErr != nil {
			s.logger.Error().Err(markErr).Uint("assessment_id", record.ID).Msg("failed to mark assessment failed")
		} else {
			record.Status = models.AssessmentStatusFailed
			record.ErrorMessage = err.Error()
			s.publish(ctx, record)
		}
		return dto.AssessmentEvaluateResponse{}, fmt.Errorf("%w: %s", ErrModelFailed, err.Error())
	}

	// Parsing never fails outward: a malformed reply degrades to the fixed
	// fallback and the record still completes.
	result := ai.ParseEvaluation(raw)
	if result.Fallback {
		observability.AssessmentFallbacks().Inc()
		s.logger.Warn().
			Uint("assessment_id", record.ID).
			Str("reason", result.Reason).
			Msg("model reply could not be parsed, fallback feedback used")
	}

	feedbackJSON, err := json.Marshal(result.Feedback)
	if err != nil {
		return dto.AssessmentEvaluateResponse{}, err
	}
	reasoningJSON, err := json.Marshal(result.Reasoning)
	if err != nil {
		return dto.AssessmentEvaluateResponse{}, err
	}

	if err := s.records.MarkCompleted(ctx, record.ID, result.Feedback.OverallScore, datatypes.JSON(feedbackJSON), datatypes.JSON(reasoningJSON), processingTime); err != nil {
		return dto.AssessmentEvaluateResponse{}, err
	}

	score := result.Feedback.OverallScore
	record.Status = models.AssessmentStatusCompleted
	record.Score = &score
	s.publish(ctx, record)

	s.logger.Info().
		Uint("assessment_id", record.ID).
		Int("score", score).
		Int64("processing_time_ms", processingTime).
		Bool("fallback", result.Fallback).
		Msg("assessment completed")

	return dto.AssessmentEvaluateResponse{
		AssessmentID:     record.ID,
		Feedback:         result.Feedback,
		Reasoning:        result.Reasoning,
		ProcessingTimeMs: processingTime,
	}, nil
}

func (s *assessmentService) Get(ctx context.Context, studentID, id uint) (dto.AssessmentRecordResponse, error) {
	if studentID == 0 {
		return dto.AssessmentRecordResponse{}, ErrUnauthorized
	}

	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssessmentRecordResponse{}, ErrAssessmentNotFound
		}
		return dto.AssessmentRecordResponse{}, err
	}

	if record.StudentID != studentID {
		return dto.AssessmentRecordResponse{}, ErrAssessmentNotFound
	}

	return dto.NewAssessmentRecordResponse(record), nil
}

func (s *assessmentService) List(ctx context.Context, studentID uint, limit, offset int) ([]dto.AssessmentRecordResponse, error) {
	if studentID == 0 {
		return nil, ErrUnauthorized
	}

	records, err := s.records.ListByStudent(ctx, studentID, limit, offset)
	if err != nil {
		return nil, err
	}

	return dto.NewAssessmentRecordResponseSlice(records), nil
}

// rubricCriteria resolves the rubric reference; a missing or unreadable rubric
// is tolerated and yields empty criteria.
func (s *assessmentService) rubricCriteria(ctx context.Context, rubricID *uint) []ai.Criterion {
	if rubricID == nil {
		return nil
	}

	rubric, err := s.rubrics.GetByID(ctx, *rubricID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Uint("rubric_id", *rubricID).Msg("failed to load rubric")
		}
		return nil
	}

	stored := rubric.CriteriaList()
	criteria := make([]ai.Criterion, 0, len(stored))
	for _, criterion := range stored {
		criteria = append(criteria, ai.Criterion{
			Name:        criterion.Name,
			Description: criterion.Description,
			MinScore:    criterion.MinScore,
			MaxScore:    criterion.MaxScore,
		})
	}

	return criteria
}

func (s *assessmentService) publish(ctx context.Context, record models.AssessmentRecord) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishTerminal(ctx, record)
}
