package dto

import (
	"time"

	"github.com/geometria-labs/geometria-api/internal/models"
)

// WorksheetInitializeRequest starts or resumes a guided worksheet attempt.
type WorksheetInitializeRequest struct {
	WorksheetType string `json:"worksheet_type" validate:"required,oneof=cylinder cone sphere"`
}

// StageUpdateRequest completes a worksheet stage with its captured payload.
type StageUpdateRequest struct {
	Data map[string]interface{} `json:"data" validate:"required"`
}

// AutoSaveRequest persists in-progress stage data without advancing the flow.
type AutoSaveRequest struct {
	Stage int                    `json:"stage" validate:"required,gte=1"`
	Data  map[string]interface{} `json:"data" validate:"required"`
}

// StageEntryResponse serializes one stored stage slot.
type StageEntryResponse struct {
	Data        map[string]interface{} `json:"data"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

// WorksheetSubmissionResponse is returned to clients viewing their attempt.
type WorksheetSubmissionResponse struct {
	ID              uint                          `json:"id"`
	StudentID       uint                          `json:"student_id"`
	WorksheetType   string                        `json:"worksheet_type"`
	StageCount      int                           `json:"stage_count"`
	Stages          map[string]StageEntryResponse `json:"stages"`
	CurrentStage    int                           `json:"current_stage"`
	CompletedStages []int                         `json:"completed_stages"`
	IsCompleted     bool                          `json:"is_completed"`
	StartedAt       time.Time                     `json:"started_at"`
	LastAutoSave    *time.Time                    `json:"last_auto_save"`
	SubmittedAt     *time.Time                    `json:"submitted_at"`
	CompletedAt     *time.Time                    `json:"completed_at"`
}

// ProgressResponse summarizes stage completion for a worksheet attempt.
type ProgressResponse struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// NewWorksheetSubmissionResponse converts a submission model into a DTO.
func NewWorksheetSubmissionResponse(model models.WorksheetSubmission) WorksheetSubmissionResponse {
	stages := map[string]StageEntryResponse{}
	for key, entry := range model.StageEntries() {
		stages[key] = StageEntryResponse{Data: entry.Data, CompletedAt: entry.CompletedAt}
	}

	completed := model.CompletedStageList()
	if completed == nil {
		completed = []int{}
	}

	return WorksheetSubmissionResponse{
		ID:              model.ID,
		StudentID:       model.StudentID,
		WorksheetType:   model.WorksheetType,
		StageCount:      model.StageCount,
		Stages:          stages,
		CurrentStage:    model.CurrentStage,
		CompletedStages: completed,
		IsCompleted:     model.IsCompleted,
		StartedAt:       model.StartedAt,
		LastAutoSave:    model.LastAutoSave,
		SubmittedAt:     model.SubmittedAt,
		CompletedAt:     model.CompletedAt,
	}
}
