package ai

import "context"

// Criterion is one rubric scoring dimension forwarded to the model.
type Criterion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MinScore    int    `json:"minScore"`
	MaxScore    int    `json:"maxScore"`
}

// EvaluationInput contains the artefacts needed to grade a geometry essay answer.
type EvaluationInput struct {
	ProblemText   string
	StudentAnswer string
	GeometryType  string
	Criteria      []Criterion
}

// CriterionScores holds the four fixed rubric scores, each on a 1-4 scale.
type CriterionScores struct {
	MathematicalAccuracy    int `json:"mathematicalAccuracy"`
	ConceptualUnderstanding int `json:"conceptualUnderstanding"`
	ProblemSolvingApproach  int `json:"problemSolvingApproach"`
	Communication           int `json:"communication"`
}

// Feedback is the structured grading object expected from the model.
type Feedback struct {
	OverallScore int             `json:"overallScore"`
	Criteria     CriterionScores `json:"criteria"`
	Strengths    []string        `json:"strengths"`
	Improvements []string        `json:"improvements"`
	NextSteps    []string        `json:"nextSteps"`
	Explanation  string          `json:"explanation"`
}

// ReasoningStep is one entry of the model's ordered reasoning trace.
type ReasoningStep struct {
	Step       int     `json:"step"`
	Reasoning  string  `json:"reasoning"`
	Finding    string  `json:"finding"`
	Confidence float64 `json:"confidence"`
}

// Evaluator sends an evaluation prompt to an external language model and returns
// its raw reply. The reply is untrusted free text; ParseEvaluation turns it into
// structured feedback.
type Evaluator interface {
	Evaluate(ctx context.Context, prompt string) (string, error)
}
