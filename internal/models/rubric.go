package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// RubricCriterion is one named scoring dimension on an integer 1-4 scale.
type RubricCriterion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MinScore    int    `json:"min_score"`
	MaxScore    int    `json:"max_score"`
}

// Rubric names a fixed set of scoring criteria used to structure grading replies.
type Rubric struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Criteria  datatypes.JSON `gorm:"type:json" json:"criteria"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CriteriaList deserializes the stored criteria.
func (r Rubric) CriteriaList() []RubricCriterion {
	if len(r.Criteria) == 0 {
		return nil
	}
	var criteria []RubricCriterion
	if err := json.Unmarshal(r.Criteria, &criteria); err != nil {
		return nil
	}
	return criteria
}

// SetCriteria serializes the criteria into the JSON column.
func (r *Rubric) SetCriteria(criteria []RubricCriterion) {
	data, err := json.Marshal(criteria)
	if err != nil {
		r.Criteria = datatypes.JSON([]byte("[]"))
		return
	}
	r.Criteria = datatypes.JSON(data)
}

// DefaultRubricCriteria returns the four standard geometry essay criteria.
func DefaultRubricCriteria() []RubricCriterion {
	return []RubricCriterion{
		{Name: "mathematical_accuracy", Description: "Correct use of formulas, units and computation", MinScore: 1, MaxScore: 4},
		{Name: "conceptual_understanding", Description: "Grasp of the geometric concepts involved", MinScore: 1, MaxScore: 4},
		{Name: "problem_solving_approach", Description: "Structure and strategy of the solution", MinScore: 1, MaxScore: 4},
		{Name: "communication", Description: "Clarity of mathematical explanation", MinScore: 1, MaxScore: 4},
	}
}
