package dto

import (
	"encoding/json"
	"time"

	"github.com/geometria-labs/geometria-api/internal/models"
)

// SectionSaveRequest stores a learner's response for one worksheet section. The
// payload is opaque: it is persisted exactly as sent.
type SectionSaveRequest struct {
	Response json.RawMessage `json:"response" validate:"required"`
}

// NavigationRequest moves the learner's section pointer.
type NavigationRequest struct {
	Section int `json:"section"`
}

// WorksheetSectionResponse serializes one catalog section.
type WorksheetSectionResponse struct {
	Position  int    `json:"position"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	InputKind string `json:"input_kind"`
	Content   string `json:"content"`
}

// WorksheetResponse serializes a worksheet definition.
type WorksheetResponse struct {
	ID           uint                       `json:"id"`
	Title        string                     `json:"title"`
	GeometryType string                     `json:"geometry_type"`
	StageCount   int                        `json:"stage_count"`
	Sections     []WorksheetSectionResponse `json:"sections"`
}

// SectionSubmissionResponse serializes a section-based submission.
type SectionSubmissionResponse struct {
	ID                uint                       `json:"id"`
	AssignmentID      uint                       `json:"assignment_id"`
	StudentID         uint                       `json:"student_id"`
	Responses         map[string]json.RawMessage `json:"responses"`
	CurrentSection    int                        `json:"current_section"`
	CompletedSections []int                      `json:"completed_sections"`
	Status            string                     `json:"status"`
	SubmittedAt       *time.Time                 `json:"submitted_at"`
}

// SectionWorksheetResponse bundles the worksheet definition with the learner's
// section submission, as loaded on worksheet entry.
type SectionWorksheetResponse struct {
	Worksheet  WorksheetResponse         `json:"worksheet"`
	Submission SectionSubmissionResponse `json:"submission"`
}

// NewWorksheetResponse converts a worksheet model into a DTO.
func NewWorksheetResponse(model models.Worksheet) WorksheetResponse {
	sections := make([]WorksheetSectionResponse, 0, len(model.Sections))
	for _, section := range model.Sections {
		sections = append(sections, WorksheetSectionResponse{
			Position:  section.Position,
			Title:     section.Title,
			Type:      section.Type,
			InputKind: section.InputKind,
			Content:   section.Content,
		})
	}

	return WorksheetResponse{
		ID:           model.ID,
		Title:        model.Title,
		GeometryType: model.GeometryType,
		StageCount:   model.StageCount,
		Sections:     sections,
	}
}

// NewSectionSubmissionResponse converts a section submission model into a DTO.
func NewSectionSubmissionResponse(model models.SectionSubmission) SectionSubmissionResponse {
	var completed []int
	if len(model.CompletedSections) > 0 {
		_ = json.Unmarshal(model.CompletedSections, &completed)
	}
	if completed == nil {
		completed = []int{}
	}

	return SectionSubmissionResponse{
		ID:                model.ID,
		AssignmentID:      model.AssignmentID,
		StudentID:         model.StudentID,
		Responses:         model.ResponseMap(),
		CurrentSection:    model.CurrentSection,
		CompletedSections: completed,
		Status:            model.Status,
		SubmittedAt:       model.SubmittedAt,
	}
}
