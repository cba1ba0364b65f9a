package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/geometria-labs/geometria-api/internal/dto"
	"github.com/geometria-labs/geometria-api/internal/models"
	"github.com/geometria-labs/geometria-api/internal/repository"
)

type worksheetSubmissionRepoStub struct {
	byID      map[uint]models.WorksheetSubmission
	nextID    uint
	updateErr error
}

func newWorksheetSubmissionRepoStub() *worksheetSubmissionRepoStub {
	return &worksheetSubmissionRepoStub{byID: map[uint]models.WorksheetSubmission{}, nextID: 1}
}

func (s *worksheetSubmissionRepoStub) GetByID(_ context.Context, id uint) (models.WorksheetSubmission, error) {
	submission, ok := s.byID[id]
	if !ok {
		return models.WorksheetSubmission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (s *worksheetSubmissionRepoStub) GetLatestOpen(_ context.Context, studentID uint) (models.WorksheetSubmission, error) {
	var latest models.WorksheetSubmission
	found := false
	for _, submission := range s.byID {
		if submission.StudentID != studentID || submission.IsCompleted {
			continue
		}
		if !found || submission.ID > latest.ID {
			latest = submission
			found = true
		}
	}
	if !found {
		return models.WorksheetSubmission{}, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (s *worksheetSubmissionRepoStub) Create(_ context.Context, submission *models.WorksheetSubmission) error {
	submission.ID = s.nextID
	s.nextID++
	s.byID[submission.ID] = *submission
	return nil
}

func (s *worksheetSubmissionRepoStub) Update(_ context.Context, submission *models.WorksheetSubmission) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	submission.Version++
	s.byID[submission.ID] = *submission
	return nil
}

type sectionSubmissionRepoStub struct {
	byKey  map[[2]uint]models.SectionSubmission
	nextID uint
}

func newSectionSubmissionRepoStub() *sectionSubmissionRepoStub {
	return &sectionSubmissionRepoStub{byKey: map[[2]uint]models.SectionSubmission{}, nextID: 1}
}

func (s *sectionSubmissionRepoStub) GetByAssignmentAndStudent(_ context.Context, assignmentID, studentID uint) (models.SectionSubmission, error) {
	submission, ok := s.byKey[[2]uint{assignmentID, studentID}]
	if !ok {
		return models.SectionSubmission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (s *sectionSubmissionRepoStub) Create(_ context.Context, submission *models.SectionSubmission) error {
	submission.ID = s.nextID
	s.nextID++
	s.byKey[[2]uint{submission.AssignmentID, submission.StudentID}] = *submission
	return nil
}

func (s *sectionSubmissionRepoStub) Update(_ context.Context, submission *models.SectionSubmission) error {
	s.byKey[[2]uint{submission.AssignmentID, submission.StudentID}] = *submission
	return nil
}

func newTestWorksheetService(submissions *worksheetSubmissionRepoStub, sections *sectionSubmissionRepoStub) *worksheetService {
	svc := NewWorksheetService(submissions, sections, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop()).(*worksheetService)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	return svc
}

func TestInitializeCreatesSubmission(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	result, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCone})
	require.NoError(t, err)

	require.Equal(t, uint(7), result.StudentID)
	require.Equal(t, models.GeometryCone, result.WorksheetType)
	require.Equal(t, models.DefaultStageCount, result.StageCount)
	require.Equal(t, 1, result.CurrentStage)
	require.Empty(t, result.CompletedStages)
	require.False(t, result.IsCompleted)
}

func TestInitializeResumesOpenSubmission(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	first, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	second, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometrySphere})
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, models.GeometryCylinder, second.WorksheetType)
	require.Len(t, repo.byID, 1)
}

func TestInitializeRequiresAuth(t *testing.T) {
	svc := newTestWorksheetService(newWorksheetSubmissionRepoStub(), newSectionSubmissionRepoStub())

	_, err := svc.Initialize(context.Background(), 0, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.ErrorIs(t, err, ErrAuthRequired)
}

func TestInitializeRejectsUnknownGeometry(t *testing.T) {
	svc := newTestWorksheetService(newWorksheetSubmissionRepoStub(), newSectionSubmissionRepoStub())

	_, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: "cube"})
	require.Error(t, err)
	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}

func TestLoadFallsBackToNewSubmission(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	missing := uint(999)
	result, err := svc.Load(context.Background(), 7, &missing)
	require.NoError(t, err)
	require.Equal(t, models.GeometryCylinder, result.WorksheetType)
	require.Equal(t, 1, result.CurrentStage)
}

func TestUpdateStageAdvancesAndRecordsCompletion(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	result, err := svc.UpdateStage(context.Background(), 7, created.ID, 1, dto.StageUpdateRequest{Data: map[string]interface{}{"radius": 3.5}})
	require.NoError(t, err)

	require.Equal(t, 2, result.CurrentStage)
	require.Equal(t, []int{1}, result.CompletedStages)

	entry, ok := result.Stages[models.StageKey(1)]
	require.True(t, ok)
	require.Equal(t, 3.5, entry.Data["radius"])
	require.NotNil(t, entry.CompletedAt)
}

func TestUpdateStageIsIdempotent(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	_, err = svc.UpdateStage(context.Background(), 7, created.ID, 2, dto.StageUpdateRequest{Data: map[string]interface{}{"height": 10}})
	require.NoError(t, err)

	result, err := svc.UpdateStage(context.Background(), 7, created.ID, 2, dto.StageUpdateRequest{Data: map[string]interface{}{"height": 12}})
	require.NoError(t, err)

	require.Equal(t, []int{2}, result.CompletedStages)
	require.Equal(t, 3, result.CurrentStage)
	require.Equal(t, float64(12), result.Stages[models.StageKey(2)].Data["height"])
}

func TestUpdateStageCapsCurrentStage(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	result, err := svc.UpdateStage(context.Background(), 7, created.ID, models.DefaultStageCount, dto.StageUpdateRequest{Data: map[string]interface{}{"done": true}})
	require.NoError(t, err)

	require.Equal(t, models.DefaultStageCount, result.CurrentStage)
}

func TestUpdateStageRejectsOutOfRange(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	_, err = svc.UpdateStage(context.Background(), 7, created.ID, 0, dto.StageUpdateRequest{Data: map[string]interface{}{}})
	require.Error(t, err)

	_, err = svc.UpdateStage(context.Background(), 7, created.ID, 7, dto.StageUpdateRequest{Data: map[string]interface{}{"x": 1}})
	require.ErrorIs(t, err, ErrInvalidStage)
}

func TestUpdateStageRejectsCompletedSubmission(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), 7, created.ID)
	require.NoError(t, err)

	_, err = svc.UpdateStage(context.Background(), 7, created.ID, 1, dto.StageUpdateRequest{Data: map[string]interface{}{"x": 1}})
	require.ErrorIs(t, err, ErrSubmissionCompleted)
}

func TestUpdateStageSurfacesStaleWrite(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	repo.updateErr = repository.ErrStaleSubmission
	_, err = svc.UpdateStage(context.Background(), 7, created.ID, 1, dto.StageUpdateRequest{Data: map[string]interface{}{"x": 1}})
	require.ErrorIs(t, err, repository.ErrStaleSubmission)
}

func TestUpdateStageRejectsForeignSubmission(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	_, err = svc.UpdateStage(context.Background(), 8, created.ID, 1, dto.StageUpdateRequest{Data: map[string]interface{}{"x": 1}})
	require.ErrorIs(t, err, ErrNoActiveSubmission)
}

func TestAutoSaveKeepsCompletionStateUntouched(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	result, err := svc.AutoSave(context.Background(), 7, created.ID, dto.AutoSaveRequest{Stage: 3, Data: map[string]interface{}{"draft": "partial"}})
	require.NoError(t, err)

	require.Equal(t, 1, result.CurrentStage)
	require.Empty(t, result.CompletedStages)
	require.NotNil(t, result.LastAutoSave)

	entry := result.Stages[models.StageKey(3)]
	require.Equal(t, "partial", entry.Data["draft"])
	require.Nil(t, entry.CompletedAt)
}

func TestAutoSavePreservesCompletionTimestamp(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	completed, err := svc.UpdateStage(context.Background(), 7, created.ID, 1, dto.StageUpdateRequest{Data: map[string]interface{}{"radius": 3}})
	require.NoError(t, err)
	stamp := completed.Stages[models.StageKey(1)].CompletedAt
	require.NotNil(t, stamp)

	result, err := svc.AutoSave(context.Background(), 7, created.ID, dto.AutoSaveRequest{Stage: 1, Data: map[string]interface{}{"radius": 4}})
	require.NoError(t, err)

	entry := result.Stages[models.StageKey(1)]
	require.Equal(t, float64(4), entry.Data["radius"])
	require.NotNil(t, entry.CompletedAt)
	require.Equal(t, *stamp, *entry.CompletedAt)
}

func TestAutoSaveSwallowsStoreFailure(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	repo.updateErr = errors.New("connection reset")
	result, err := svc.AutoSave(context.Background(), 7, created.ID, dto.AutoSaveRequest{Stage: 2, Data: map[string]interface{}{"draft": "lost"}})
	require.NoError(t, err)

	// The failed write is invisible: the pre-save state comes back.
	require.Nil(t, result.LastAutoSave)
	require.NotContains(t, result.Stages, models.StageKey(2))
}

func TestSubmitIsIrreversibleAndIdempotent(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	first, err := svc.Submit(context.Background(), 7, created.ID)
	require.NoError(t, err)
	require.True(t, first.IsCompleted)
	require.NotNil(t, first.SubmittedAt)
	require.NotNil(t, first.CompletedAt)

	second, err := svc.Submit(context.Background(), 7, created.ID)
	require.NoError(t, err)
	require.Equal(t, first.SubmittedAt, second.SubmittedAt)
}

func TestSubmitFinalizesLinkedSectionSubmission(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	sections := newSectionSubmissionRepoStub()
	svc := newTestWorksheetService(repo, sections)

	assignmentID := uint(42)
	section := models.SectionSubmission{AssignmentID: assignmentID, StudentID: 7, Status: models.SectionSubmissionStatusDraft}
	require.NoError(t, sections.Create(context.Background(), &section))

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	stored := repo.byID[created.ID]
	stored.AssignmentID = &assignmentID
	repo.byID[created.ID] = stored

	_, err = svc.Submit(context.Background(), 7, created.ID)
	require.NoError(t, err)

	linked, err := sections.GetByAssignmentAndStudent(context.Background(), assignmentID, 7)
	require.NoError(t, err)
	require.Equal(t, models.SectionSubmissionStatusSubmitted, linked.Status)
	require.NotNil(t, linked.SubmittedAt)
}

func TestProgressFormula(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	for stage := 1; stage <= 3; stage++ {
		_, err = svc.UpdateStage(context.Background(), 7, created.ID, stage, dto.StageUpdateRequest{Data: map[string]interface{}{"n": stage}})
		require.NoError(t, err)
	}

	progress, err := svc.Progress(context.Background(), 7, created.ID)
	require.NoError(t, err)
	require.Equal(t, 3, progress.Completed)
	require.Equal(t, 6, progress.Total)
	require.Equal(t, 50, progress.Percentage)
}

func TestProgressRoundsToNearestPercent(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	_, err = svc.UpdateStage(context.Background(), 7, created.ID, 1, dto.StageUpdateRequest{Data: map[string]interface{}{"n": 1}})
	require.NoError(t, err)

	progress, err := svc.Progress(context.Background(), 7, created.ID)
	require.NoError(t, err)
	require.Equal(t, 17, progress.Percentage)
}

func TestProgressWithoutSubmissionIsZero(t *testing.T) {
	svc := newTestWorksheetService(newWorksheetSubmissionRepoStub(), newSectionSubmissionRepoStub())

	progress, err := svc.Progress(context.Background(), 7, 999)
	require.NoError(t, err)
	require.Equal(t, dto.ProgressResponse{Completed: 0, Total: models.DefaultStageCount, Percentage: 0}, progress)
}

func TestProgressCountsOnlyTimestampedStages(t *testing.T) {
	repo := newWorksheetSubmissionRepoStub()
	svc := newTestWorksheetService(repo, newSectionSubmissionRepoStub())

	created, err := svc.Initialize(context.Background(), 7, dto.WorksheetInitializeRequest{WorksheetType: models.GeometryCylinder})
	require.NoError(t, err)

	_, err = svc.UpdateStage(context.Background(), 7, created.ID, 1, dto.StageUpdateRequest{Data: map[string]interface{}{"n": 1}})
	require.NoError(t, err)
	_, err = svc.AutoSave(context.Background(), 7, created.ID, dto.AutoSaveRequest{Stage: 2, Data: map[string]interface{}{"draft": true}})
	require.NoError(t, err)

	progress, err := svc.Progress(context.Background(), 7, created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, progress.Completed)
}
