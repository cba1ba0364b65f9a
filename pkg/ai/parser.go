package ai

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// evaluationSchema checks the structural shape of a decoded reply: a feedback
// object must be present. Score ranges are deliberately not validated here; the
// decoded values are passed through as-is.
var evaluationSchema = jsonschema.MustCompileString("evaluation.json", `{
	"type": "object",
	"required": ["feedback"],
	"properties": {
		"feedback": {"type": "object"},
		"chainOfThought": {"type": "array"}
	}
}`)

// ParseResult is the outcome of decoding a model reply. Exactly one of the two
// variants applies: a parsed reply (Fallback false) carries the model's own
// feedback verbatim; a degraded reply (Fallback true) carries the fixed fallback
// feedback and the reason parsing failed.
type ParseResult struct {
	Feedback  Feedback
	Reasoning []ReasoningStep
	Fallback  bool
	Reason    string
}

type evaluationEnvelope struct {
	ChainOfThought []ReasoningStep `json:"chainOfThought"`
	Feedback       Feedback        `json:"feedback"`
}

// ParseEvaluation extracts structured feedback from the model's raw reply. It is
// a total function: malformed input of any shape yields the fallback result,
// never an error.
func ParseEvaluation(raw string) ParseResult {
	block, ok := extractJSONBlock(raw)
	if !ok {
		return fallbackResult("no JSON block found in model reply")
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(block), &decoded); err != nil {
		return fallbackResult("model reply is not valid JSON: " + err.Error())
	}

	if err := evaluationSchema.Validate(decoded); err != nil {
		return fallbackResult("model reply missing feedback object: " + err.Error())
	}

	var envelope evaluationEnvelope
	if err := json.Unmarshal([]byte(block), &envelope); err != nil {
		return fallbackResult("model reply does not match the expected shape: " + err.Error())
	}

	reasoning := envelope.ChainOfThought
	if reasoning == nil {
		reasoning = []ReasoningStep{}
	}

	return ParseResult{
		Feedback:  envelope.Feedback,
		Reasoning: reasoning,
	}
}

// extractJSONBlock scans for the first balanced top-level brace block embedded in
// the text, tolerating prose before and after. String literals and escapes are
// honoured so braces inside JSON strings do not unbalance the scan.
func extractJSONBlock(raw string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		ch := raw[i]

		if start == -1 {
			if ch == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if escaped {
			escaped = false
			continue
		}

		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return raw[start : i+1], true
				}
			}
		}
	}

	return "", false
}

// FallbackFeedback is the fixed low-confidence scoring object substituted when a
// model reply cannot be structurally decoded.
func FallbackFeedback() Feedback {
	return Feedback{
		OverallScore: 50,
		Criteria: CriterionScores{
			MathematicalAccuracy:    2,
			ConceptualUnderstanding: 2,
			ProblemSolvingApproach:  2,
			Communication:           2,
		},
		Strengths:    []string{"Attempted to solve the problem"},
		Improvements: []string{"AI evaluation failed - teacher review needed"},
		NextSteps:    []string{"Ask your teacher to review this answer manually"},
		Explanation:  "The automatic evaluation could not be completed, so a provisional score was assigned. A teacher will review this answer.",
	}
}

func fallbackResult(reason string) ParseResult {
	return ParseResult{
		Feedback: FallbackFeedback(),
		Reasoning: []ReasoningStep{
			{Step: 1, Reasoning: "Automatic parsing of the evaluation reply failed", Finding: reason, Confidence: 0},
		},
		Fallback: true,
		Reason:   reason,
	}
}
