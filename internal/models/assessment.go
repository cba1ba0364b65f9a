package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// AssessmentStatus is the lifecycle state of a grading request. Transitions are
// strictly pending -> processing -> {completed | failed}; terminal states are
// absorbing.
type AssessmentStatus string

const (
	AssessmentStatusPending    AssessmentStatus = "pending"
	AssessmentStatusProcessing AssessmentStatus = "processing"
	AssessmentStatusCompleted  AssessmentStatus = "completed"
	AssessmentStatusFailed     AssessmentStatus = "failed"
)

// Terminal reports whether the status is absorbing.
func (s AssessmentStatus) Terminal() bool {
	return s == AssessmentStatusCompleted || s == AssessmentStatusFailed
}

// CanTransition reports whether moving to next is a legal lifecycle step.
func (s AssessmentStatus) CanTransition(next AssessmentStatus) bool {
	switch s {
	case AssessmentStatusPending:
		return next == AssessmentStatusProcessing
	case AssessmentStatusProcessing:
		return next.Terminal()
	}
	return false
}

// Transition returns the next status or an error when the move is illegal.
func (s AssessmentStatus) Transition(next AssessmentStatus) (AssessmentStatus, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("illegal assessment status transition %s -> %s", s, next)
	}
	return next, nil
}

// AssessmentRecord is the persisted unit of work for one AI grading request.
// Score, feedback and reasoning are populated atomically with the transition to
// completed; ErrorMessage only with the transition to failed.
type AssessmentRecord struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	StudentID        uint             `gorm:"not null;index" json:"student_id"`
	LessonID         uint             `gorm:"not null" json:"lesson_id"`
	RubricID         *uint            `json:"rubric_id"`
	ProblemText      string           `gorm:"type:text;not null" json:"problem_text"`
	StudentAnswer    string           `gorm:"type:text;not null" json:"student_answer"`
	GeometryType     string           `gorm:"size:32;not null" json:"geometry_type"`
	Status           AssessmentStatus `gorm:"size:16;not null;index" json:"status"`
	Score            *int             `json:"score"`
	Feedback         datatypes.JSON   `gorm:"type:json" json:"feedback"`
	Reasoning        datatypes.JSON   `gorm:"type:json" json:"reasoning"`
	ErrorMessage     string           `gorm:"type:text" json:"error_message,omitempty"`
	ProcessingTimeMs int64            `json:"processing_time_ms"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
