package models

import "time"

// Geometry solid kinds supported by the worksheet catalog.
const (
	GeometryCylinder = "cylinder"
	GeometryCone     = "cone"
	GeometrySphere   = "sphere"
)

// IsValidGeometry reports whether the given solid kind is part of the catalog.
func IsValidGeometry(kind string) bool {
	switch kind {
	case GeometryCylinder, GeometryCone, GeometrySphere:
		return true
	}
	return false
}

// Section kinds describing the pedagogical role of a worksheet section.
const (
	SectionTypeIntro       = "intro"
	SectionTypeActivity    = "activity"
	SectionTypeObservation = "observation"
	SectionTypeAnalysis    = "analysis"
	SectionTypeConclusion  = "conclusion"
)

// Input kinds describing what a section collects from the learner.
const (
	SectionInputNone = "none"
	SectionInputText = "text"
	SectionInputData = "data"
)

// Worksheet is a read-only guided activity definition supplied by the content catalog.
type Worksheet struct {
	ID           uint               `gorm:"primaryKey" json:"id"`
	Title        string             `gorm:"size:255;not null" json:"title"`
	GeometryType string             `gorm:"size:32;not null;index" json:"geometry_type"`
	StageCount   int                `gorm:"not null" json:"stage_count"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	Sections     []WorksheetSection `gorm:"foreignKey:WorksheetID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"sections"`
}

// WorksheetSection is one ordered entry of a worksheet definition.
type WorksheetSection struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	WorksheetID uint   `gorm:"not null;index" json:"worksheet_id"`
	Position    int    `gorm:"not null" json:"position"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Type        string `gorm:"size:32;not null" json:"type"`
	InputKind   string `gorm:"size:16;not null" json:"input_kind"`
	Content     string `gorm:"type:text" json:"content"`
}
