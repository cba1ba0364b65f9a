package models

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// DefaultStageCount is the number of stages in the guided worksheet flow.
const DefaultStageCount = 6

// StageEntry is the stored payload for a single worksheet stage.
type StageEntry struct {
	Data        map[string]interface{} `json:"data"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

// WorksheetSubmission tracks one learner's progress through a guided worksheet attempt.
type WorksheetSubmission struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	StudentID       uint           `gorm:"not null;index" json:"student_id"`
	AssignmentID    *uint          `gorm:"index" json:"assignment_id"`
	WorksheetType   string         `gorm:"size:32;not null" json:"worksheet_type"`
	StageCount      int            `gorm:"not null;default:6" json:"stage_count"`
	StageData       datatypes.JSON `gorm:"type:json" json:"stage_data"`
	CurrentStage    int            `gorm:"not null;default:1" json:"current_stage"`
	CompletedStages datatypes.JSON `gorm:"type:json" json:"completed_stages"`
	IsCompleted     bool           `gorm:"not null;default:false" json:"is_completed"`
	Version         int64          `gorm:"not null;default:0" json:"-"`
	StartedAt       time.Time      `json:"started_at"`
	LastAutoSave    *time.Time     `json:"last_auto_save"`
	SubmittedAt     *time.Time     `json:"submitted_at"`
	CompletedAt     *time.Time     `json:"completed_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// StageKey returns the storage key for a stage number.
func StageKey(stage int) string {
	return "stage_" + strconv.Itoa(stage)
}

// StageEntries deserializes the stored stage payload map.
func (s WorksheetSubmission) StageEntries() map[string]StageEntry {
	entries := map[string]StageEntry{}
	if len(s.StageData) == 0 {
		return entries
	}
	if err := json.Unmarshal(s.StageData, &entries); err != nil {
		return map[string]StageEntry{}
	}
	return entries
}

// SetStageEntries serializes the stage payload map into the JSON column.
func (s *WorksheetSubmission) SetStageEntries(entries map[string]StageEntry) {
	data, err := json.Marshal(entries)
	if err != nil {
		s.StageData = datatypes.JSON([]byte("{}"))
		return
	}
	s.StageData = datatypes.JSON(data)
}

// MergeStage merges payload into the stage slot. When completedAt is non-nil the
// entry's completion timestamp is replaced; otherwise an existing timestamp is kept.
func (s *WorksheetSubmission) MergeStage(stage int, payload map[string]interface{}, completedAt *time.Time) {
	entries := s.StageEntries()
	entry := entries[StageKey(stage)]
	if entry.Data == nil {
		entry.Data = map[string]interface{}{}
	}
	for key, value := range payload {
		entry.Data[key] = value
	}
	if completedAt != nil {
		entry.CompletedAt = completedAt
	}
	entries[StageKey(stage)] = entry
	s.SetStageEntries(entries)
}

// CompletedStageList deserializes the completed stage set, sorted ascending.
func (s WorksheetSubmission) CompletedStageList() []int {
	if len(s.CompletedStages) == 0 {
		return nil
	}
	var stages []int
	if err := json.Unmarshal(s.CompletedStages, &stages); err != nil {
		return nil
	}
	sort.Ints(stages)
	return stages
}

// HasCompletedStage reports whether the stage is already in the completed set.
func (s WorksheetSubmission) HasCompletedStage(stage int) bool {
	for _, completed := range s.CompletedStageList() {
		if completed == stage {
			return true
		}
	}
	return false
}

// AddCompletedStage appends the stage to the completed set without duplicates.
func (s *WorksheetSubmission) AddCompletedStage(stage int) {
	if s.HasCompletedStage(stage) {
		return
	}
	stages := append(s.CompletedStageList(), stage)
	sort.Ints(stages)
	data, err := json.Marshal(stages)
	if err != nil {
		return
	}
	s.CompletedStages = datatypes.JSON(data)
}

// CompletedWithTimestamp counts stages whose entry carries a completion timestamp.
func (s WorksheetSubmission) CompletedWithTimestamp() int {
	count := 0
	for _, entry := range s.StageEntries() {
		if entry.CompletedAt != nil {
			count++
		}
	}
	return count
}
