package ai

import (
	"encoding/json"
	"strings"
)

type geometryContext struct {
	Formulas      []string
	Relationships []string
	Examples      []string
}

// knowledgeContexts holds the geometry background injected into evaluation
// prompts, keyed by solid kind.
var knowledgeContexts = map[string]geometryContext{
	"cylinder": {
		Formulas: []string{
			"Volume: V = pi * r^2 * h",
			"Lateral surface area: L = 2 * pi * r * h",
			"Total surface area: A = 2 * pi * r * (r + h)",
		},
		Relationships: []string{
			"A cylinder is a prism with a circular base: its volume is base area times height.",
			"Doubling the radius quadruples the volume; doubling the height only doubles it.",
		},
		Examples: []string{
			"A soup can, a water tank, a drinking glass.",
		},
	},
	"cone": {
		Formulas: []string{
			"Volume: V = (1/3) * pi * r^2 * h",
			"Slant height: s = sqrt(r^2 + h^2)",
			"Lateral surface area: L = pi * r * s",
			"Total surface area: A = pi * r * (r + s)",
		},
		Relationships: []string{
			"A cone has exactly one third of the volume of a cylinder with the same base and height.",
			"The slant height, radius and height form a right triangle.",
		},
		Examples: []string{
			"An ice cream cone, a traffic cone, a party hat.",
		},
	},
	"sphere": {
		Formulas: []string{
			"Volume: V = (4/3) * pi * r^3",
			"Surface area: A = 4 * pi * r^2",
		},
		Relationships: []string{
			"Every point on a sphere is equidistant from its center.",
			"The surface area equals four great-circle areas; the volume grows with the cube of the radius.",
		},
		Examples: []string{
			"A football, a marble, a globe.",
		},
	},
}

// BuildEvaluationPrompt composes the full grading instruction sent to the model.
// It is a pure function: identical inputs always produce identical prompts.
func BuildEvaluationPrompt(input EvaluationInput) string {
	builder := strings.Builder{}

	builder.WriteString("You are an experienced middle-school geometry teacher grading a student's written answer. ")
	builder.WriteString("Be encouraging but precise; the audience is a learner working through a guided worksheet.\n\n")

	if kc, ok := knowledgeContexts[strings.ToLower(strings.TrimSpace(input.GeometryType))]; ok {
		builder.WriteString("## Geometry context (")
		builder.WriteString(input.GeometryType)
		builder.WriteString(")\nFormulas:\n")
		for _, formula := range kc.Formulas {
			builder.WriteString("- " + formula + "\n")
		}
		builder.WriteString("Key relationships:\n")
		for _, relationship := range kc.Relationships {
			builder.WriteString("- " + relationship + "\n")
		}
		builder.WriteString("Real-world examples: ")
		builder.WriteString(strings.Join(kc.Examples, " "))
		builder.WriteString("\n\n")
	}

	builder.WriteString("## Problem\n")
	builder.WriteString(input.ProblemText)
	builder.WriteString("\n\n## Student answer\n")
	builder.WriteString(input.StudentAnswer)
	builder.WriteString("\n\n## Rubric criteria\n")
	builder.WriteString(serializeCriteria(input.Criteria))

	builder.WriteString("\n\n## Output format\n")
	builder.WriteString("Respond with a single JSON object and nothing else:\n")
	builder.WriteString(`{"chainOfThought": [{"step": 1, "reasoning": "...", "finding": "...", "confidence": 0.0}], `)
	builder.WriteString(`"feedback": {"overallScore": 0, "criteria": {"mathematicalAccuracy": 1, "conceptualUnderstanding": 1, `)
	builder.WriteString(`"problemSolvingApproach": 1, "communication": 1}, "strengths": [], "improvements": [], "nextSteps": [], "explanation": ""}}`)
	builder.WriteString("\nchainOfThought steps are ordered; confidence is between 0 and 1. ")
	builder.WriteString("overallScore is 0-100; each criterion score is an integer from 1 to 4.\n")

	return builder.String()
}

func serializeCriteria(criteria []Criterion) string {
	if len(criteria) == 0 {
		return "[]"
	}
	data, err := json.Marshal(criteria)
	if err != nil {
		return "[]"
	}
	return string(data)
}
