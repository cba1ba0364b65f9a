package models

import (
	"encoding/json"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

const (
	// SectionSubmissionStatusDraft indicates the learner is still working.
	SectionSubmissionStatusDraft = "draft"
	// SectionSubmissionStatusSubmitted indicates the learner finalized the worksheet.
	SectionSubmissionStatusSubmitted = "submitted"
)

// SectionSubmission tracks a learner's progress through a section-based worksheet.
// One record exists per (student, assignment) and is reused across visits.
type SectionSubmission struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	AssignmentID      uint           `gorm:"not null;index:idx_section_submission_owner" json:"assignment_id"`
	StudentID         uint           `gorm:"not null;index:idx_section_submission_owner" json:"student_id"`
	Responses         datatypes.JSON `gorm:"type:json" json:"responses"`
	CurrentSection    int            `gorm:"not null;default:0" json:"current_section"`
	CompletedSections datatypes.JSON `gorm:"type:json" json:"completed_sections"`
	Status            string         `gorm:"size:16;not null;default:draft" json:"status"`
	SubmittedAt       *time.Time     `json:"submitted_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// IsSubmitted reports whether the submission has been finalized.
func (s SectionSubmission) IsSubmitted() bool {
	return s.Status == SectionSubmissionStatusSubmitted
}

// ResponseMap deserializes the per-section response map. Payloads are opaque to
// this model; they are stored and returned exactly as the client sent them.
func (s SectionSubmission) ResponseMap() map[string]json.RawMessage {
	responses := map[string]json.RawMessage{}
	if len(s.Responses) == 0 {
		return responses
	}
	if err := json.Unmarshal(s.Responses, &responses); err != nil {
		return map[string]json.RawMessage{}
	}
	return responses
}

// SetResponse stores the opaque payload under the section index key.
func (s *SectionSubmission) SetResponse(index int, payload json.RawMessage) {
	responses := s.ResponseMap()
	responses[strconv.Itoa(index)] = payload
	data, err := json.Marshal(responses)
	if err != nil {
		return
	}
	s.Responses = datatypes.JSON(data)
}
