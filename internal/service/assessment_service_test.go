package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/geometria-labs/geometria-api/internal/dto"
	"github.com/geometria-labs/geometria-api/internal/models"
	"github.com/geometria-labs/geometria-api/pkg/ai"
)

type assessmentRepoStub struct {
	byID      map[uint]models.AssessmentRecord
	nextID    uint
	createErr error
}

func newAssessmentRepoStub() *assessmentRepoStub {
	return &assessmentRepoStub{byID: map[uint]models.AssessmentRecord{}, nextID: 1}
}

func (s *assessmentRepoStub) Create(_ context.Context, record *models.AssessmentRecord) error {
	if s.createErr != nil {
		return s.createErr
	}
	record.ID = s.nextID
	s.nextID++
	s.byID[record.ID] = *record
	return nil
}

func (s *assessmentRepoStub) GetByID(_ context.Context, id uint) (models.AssessmentRecord, error) {
	record, ok := s.byID[id]
	if !ok {
		return models.AssessmentRecord{}, gorm.ErrRecordNotFound
	}
	return record, nil
}

func (s *assessmentRepoStub) ListByStudent(_ context.Context, studentID uint, _, _ int) ([]models.AssessmentRecord, error) {
	var records []models.AssessmentRecord
	for _, record := range s.byID {
		if record.StudentID == studentID {
			records = append(records, record)
		}
	}
	return records, nil
}

func (s *assessmentRepoStub) MarkCompleted(_ context.Context, id uint, score int, feedback, reasoning datatypes.JSON, processingTimeMs int64) error {
	record := s.byID[id]
	if record.Status.Terminal() {
		return errors.New("already finalized")
	}
	record.Status = models.AssessmentStatusCompleted
	record.Score = &score
	record.Feedback = feedback
	record.Reasoning = reasoning
	record.ProcessingTimeMs = processingTimeMs
	s.byID[id] = record
	return nil
}

func (s *assessmentRepoStub) MarkFailed(_ context.Context, id uint, reason string) error {
	record := s.byID[id]
	if record.Status.Terminal() {
		return errors.New("already finalized")
	}
	record.Status = models.AssessmentStatusFailed
	record.ErrorMessage = reason
	s.byID[id] = record
	return nil
}

type rubricRepoStub struct {
	rubrics map[uint]models.Rubric
}

func (s *rubricRepoStub) GetByID(_ context.Context, id uint) (models.Rubric, error) {
	rubric, ok := s.rubrics[id]
	if !ok {
		return models.Rubric{}, gorm.ErrRecordNotFound
	}
	return rubric, nil
}

func (s *rubricRepoStub) Create(_ context.Context, rubric *models.Rubric) error {
	if s.rubrics == nil {
		s.rubrics = map[uint]models.Rubric{}
	}
	rubric.ID = uint(len(s.rubrics) + 1)
	s.rubrics[rubric.ID] = *rubric
	return nil
}

type evaluatorStub struct {
	reply   string
	err     error
	prompts []string
}

func (e *evaluatorStub) Evaluate(_ context.Context, prompt string) (string, error) {
	e.prompts = append(e.prompts, prompt)
	if e.err != nil {
		return "", e.err
	}
	return e.reply, nil
}

type notifierStub struct {
	events []models.AssessmentRecord
}

func (n *notifierStub) PublishTerminal(_ context.Context, record models.AssessmentRecord) {
	n.events = append(n.events, record)
}

func newTestAssessmentService(records *assessmentRepoStub, rubrics *rubricRepoStub, evaluator ai.Evaluator, notifier *notifierStub) *assessmentService {
	svc := NewAssessmentService(records, rubrics, evaluator, notifier, zerolog.Nop()).(*assessmentService)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	return svc
}

func validRequest() dto.AssessmentEvaluateRequest {
	return dto.AssessmentEvaluateRequest{
		ProblemText:   "Find the volume of a cylinder with r=3 and h=10.",
		StudentAnswer: "V = pi * 9 * 10 = 90pi",
		LessonID:      "12",
		GeometryType:  "cylinder",
	}
}

const structuredReply = `Here is my evaluation:
{
	"chainOfThought": [
		{"step": 1, "reasoning": "Check the formula", "finding": "Correct formula used", "confidence": 0.9}
	],
	"feedback": {
		"overallScore": 85,
		"criteria": {"mathematicalAccuracy": 4, "conceptualUnderstanding": 3, "problemSolvingApproach": 3, "communication": 3},
		"strengths": ["Correct formula"],
		"improvements": ["Show the units"],
		"nextSteps": ["Practice unit conversions"],
		"explanation": "Solid work overall."
	}
}`

func TestEvaluateCompletesWithStructuredReply(t *testing.T) {
	records := newAssessmentRepoStub()
	evaluator := &evaluatorStub{reply: structuredReply}
	notifier := &notifierStub{}
	svc := newTestAssessmentService(records, &rubricRepoStub{}, evaluator, notifier)

	result, err := svc.Evaluate(context.Background(), 7, validRequest())
	require.NoError(t, err)

	require.Equal(t, 85, result.Feedback.OverallScore)
	require.Equal(t, 4, result.Feedback.Criteria.MathematicalAccuracy)
	require.Len(t, result.Reasoning, 1)

	record := records.byID[result.AssessmentID]
	require.Equal(t, models.AssessmentStatusCompleted, record.Status)
	require.NotNil(t, record.Score)
	require.Equal(t, 85, *record.Score)
	require.Equal(t, uint(12), record.LessonID)

	var stored ai.Feedback
	require.NoError(t, json.Unmarshal(record.Feedback, &stored))
	require.Equal(t, 85, stored.OverallScore)

	require.Len(t, notifier.events, 1)
	require.Equal(t, models.AssessmentStatusCompleted, notifier.events[0].Status)
}

func TestEvaluateMarksFailedOnModelError(t *testing.T) {
	records := newAssessmentRepoStub()
	evaluator := &evaluatorStub{err: errors.New("rate limited")}
	notifier := &notifierStub{}
	svc := newTestAssessmentService(records, &rubricRepoStub{}, evaluator, notifier)

	_, err := svc.Evaluate(context.Background(), 7, validRequest())
	require.ErrorIs(t, err, ErrModelFailed)

	require.Len(t, records.byID, 1)
	for _, record := range records.byID {
		require.Equal(t, models.AssessmentStatusFailed, record.Status)
		require.Contains(t, record.ErrorMessage, "rate limited")
		require.Equal(t, "V = pi * 9 * 10 = 90pi", record.StudentAnswer)
	}

	require.Len(t, notifier.events, 1)
	require.Equal(t, models.AssessmentStatusFailed, notifier.events[0].Status)
}

func TestEvaluateFallsBackOnProseReply(t *testing.T) {
	records := newAssessmentRepoStub()
	evaluator := &evaluatorStub{reply: "The student did a great job, I would give them a high score."}
	svc := newTestAssessmentService(records, &rubricRepoStub{}, evaluator, &notifierStub{})

	result, err := svc.Evaluate(context.Background(), 7, validRequest())
	require.NoError(t, err)

	require.Equal(t, 50, result.Feedback.OverallScore)
	require.Equal(t, ai.FallbackFeedback(), result.Feedback)

	record := records.byID[result.AssessmentID]
	require.Equal(t, models.AssessmentStatusCompleted, record.Status)
	require.Equal(t, 50, *record.Score)
}

func TestEvaluateRejectsUnauthenticated(t *testing.T) {
	records := newAssessmentRepoStub()
	svc := newTestAssessmentService(records, &rubricRepoStub{}, &evaluatorStub{reply: structuredReply}, &notifierStub{})

	_, err := svc.Evaluate(context.Background(), 0, validRequest())
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Empty(t, records.byID)
}

func TestEvaluateRejectsMissingFields(t *testing.T) {
	records := newAssessmentRepoStub()
	svc := newTestAssessmentService(records, &rubricRepoStub{}, &evaluatorStub{reply: structuredReply}, &notifierStub{})

	payload := validRequest()
	payload.StudentAnswer = ""
	_, err := svc.Evaluate(context.Background(), 7, payload)
	require.ErrorIs(t, err, ErrMissingFields)
	require.Empty(t, records.byID)
}

func TestEvaluateRejectsNonNumericLessonID(t *testing.T) {
	records := newAssessmentRepoStub()
	svc := newTestAssessmentService(records, &rubricRepoStub{}, &evaluatorStub{reply: structuredReply}, &notifierStub{})

	payload := validRequest()
	payload.LessonID = "abc"
	_, err := svc.Evaluate(context.Background(), 7, payload)
	require.ErrorIs(t, err, ErrInvalidLessonID)
	require.Empty(t, records.byID)
}

func TestEvaluateSurfacesStoreFailure(t *testing.T) {
	records := newAssessmentRepoStub()
	records.createErr = errors.New("connection refused")
	svc := newTestAssessmentService(records, &rubricRepoStub{}, &evaluatorStub{reply: structuredReply}, &notifierStub{})

	_, err := svc.Evaluate(context.Background(), 7, validRequest())
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestEvaluateStripsMarkupFromInput(t *testing.T) {
	records := newAssessmentRepoStub()
	evaluator := &evaluatorStub{reply: structuredReply}
	svc := newTestAssessmentService(records, &rubricRepoStub{}, evaluator, &notifierStub{})

	payload := validRequest()
	payload.StudentAnswer = `<script>alert("x")</script>V = 90pi`
	result, err := svc.Evaluate(context.Background(), 7, payload)
	require.NoError(t, err)

	record := records.byID[result.AssessmentID]
	require.Equal(t, "V = 90pi", record.StudentAnswer)
	require.NotContains(t, evaluator.prompts[0], "<script>")
}

func TestEvaluateIncludesRubricCriteriaInPrompt(t *testing.T) {
	rubric := models.Rubric{ID: 3, Name: "Default"}
	rubric.SetCriteria(models.DefaultRubricCriteria())
	rubrics := &rubricRepoStub{rubrics: map[uint]models.Rubric{3: rubric}}

	evaluator := &evaluatorStub{reply: structuredReply}
	svc := newTestAssessmentService(newAssessmentRepoStub(), rubrics, evaluator, &notifierStub{})

	payload := validRequest()
	payload.RubricID = "3"
	_, err := svc.Evaluate(context.Background(), 7, payload)
	require.NoError(t, err)

	require.Contains(t, evaluator.prompts[0], "mathematical_accuracy")
}

func TestEvaluateToleratesMissingRubric(t *testing.T) {
	svc := newTestAssessmentService(newAssessmentRepoStub(), &rubricRepoStub{}, &evaluatorStub{reply: structuredReply}, &notifierStub{})

	payload := validRequest()
	payload.RubricID = "404"
	_, err := svc.Evaluate(context.Background(), 7, payload)
	require.NoError(t, err)
}

func TestGetEnforcesOwnership(t *testing.T) {
	records := newAssessmentRepoStub()
	svc := newTestAssessmentService(records, &rubricRepoStub{}, &evaluatorStub{reply: structuredReply}, &notifierStub{})

	result, err := svc.Evaluate(context.Background(), 7, validRequest())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 8, result.AssessmentID)
	require.ErrorIs(t, err, ErrAssessmentNotFound)

	record, err := svc.Get(context.Background(), 7, result.AssessmentID)
	require.NoError(t, err)
	require.Equal(t, result.AssessmentID, record.ID)
}
