package dto

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/geometria-labs/geometria-api/internal/models"
	"github.com/geometria-labs/geometria-api/pkg/ai"
)

// FlexibleID accepts either a JSON string or a JSON number as an identifier,
// matching clients that send lessonId/rubricId in both shapes.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*f = FlexibleID(asString)
		return nil
	}

	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*f = FlexibleID(asNumber.String())
		return nil
	}

	return fmt.Errorf("identifier must be a string or a number")
}

// IsZero reports whether the identifier was absent from the request.
func (f FlexibleID) IsZero() bool {
	return f == ""
}

// Uint coerces the identifier to a stable numeric id.
func (f FlexibleID) Uint() (uint, error) {
	parsed, err := strconv.ParseUint(string(f), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier %q", string(f))
	}
	return uint(parsed), nil
}

// AssessmentEvaluateRequest is the body of an essay grading request.
type AssessmentEvaluateRequest struct {
	ProblemText   string     `json:"problemText"`
	StudentAnswer string     `json:"studentAnswer"`
	LessonID      FlexibleID `json:"lessonId"`
	RubricID      FlexibleID `json:"rubricId"`
	GeometryType  string     `json:"geometryType"`
}

// AssessmentEvaluateResponse is returned on successful evaluation.
type AssessmentEvaluateResponse struct {
	AssessmentID     uint               `json:"assessmentId"`
	Feedback         ai.Feedback        `json:"feedback"`
	Reasoning        []ai.ReasoningStep `json:"reasoning"`
	ProcessingTimeMs int64              `json:"processingTimeMs"`
}

// AssessmentRecordResponse serializes a stored assessment record.
type AssessmentRecordResponse struct {
	ID               uint            `json:"id"`
	LessonID         uint            `json:"lesson_id"`
	RubricID         *uint           `json:"rubric_id"`
	ProblemText      string          `json:"problem_text"`
	StudentAnswer    string          `json:"student_answer"`
	GeometryType     string          `json:"geometry_type"`
	Status           string          `json:"status"`
	Score            *int            `json:"score"`
	Feedback         json.RawMessage `json:"feedback,omitempty"`
	Reasoning        json.RawMessage `json:"reasoning,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewAssessmentRecordResponse converts an assessment record into a DTO.
func NewAssessmentRecordResponse(model models.AssessmentRecord) AssessmentRecordResponse {
	return AssessmentRecordResponse{
		ID:               model.ID,
		LessonID:         model.LessonID,
		RubricID:         model.RubricID,
		ProblemText:      model.ProblemText,
		StudentAnswer:    model.StudentAnswer,
		GeometryType:     model.GeometryType,
		Status:           string(model.Status),
		Score:            model.Score,
		Feedback:         json.RawMessage(model.Feedback),
		Reasoning:        json.RawMessage(model.Reasoning),
		ErrorMessage:     model.ErrorMessage,
		ProcessingTimeMs: model.ProcessingTimeMs,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

// NewAssessmentRecordResponseSlice converts assessment records into DTOs.
func NewAssessmentRecordResponseSlice(records []models.AssessmentRecord) []AssessmentRecordResponse {
	responses := make([]AssessmentRecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, NewAssessmentRecordResponse(record))
	}

	return responses
}
