package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildEvaluationPromptDeterministic(t *testing.T) {
	input := EvaluationInput{
		ProblemText:   "Find the volume of a cylinder with r=3 and h=5.",
		StudentAnswer: "V = pi * 9 * 5 = 45pi",
		GeometryType:  "cylinder",
		Criteria: []Criterion{
			{Name: "mathematical_accuracy", Description: "Correct computation", MinScore: 1, MaxScore: 4},
		},
	}

	first := BuildEvaluationPrompt(input)
	second := BuildEvaluationPrompt(input)

	require.Equal(t, first, second)
	require.Contains(t, first, input.ProblemText)
	require.Contains(t, first, input.StudentAnswer)
	require.Contains(t, first, "mathematical_accuracy")
	require.Contains(t, first, "chainOfThought")
	require.Contains(t, first, "overallScore")
}

func TestBuildEvaluationPromptSelectsKnowledgeContext(t *testing.T) {
	base := EvaluationInput{ProblemText: "p", StudentAnswer: "a"}

	cylinder := base
	cylinder.GeometryType = "cylinder"
	require.Contains(t, BuildEvaluationPrompt(cylinder), "V = pi * r^2 * h")

	cone := base
	cone.GeometryType = "cone"
	require.Contains(t, BuildEvaluationPrompt(cone), "(1/3) * pi * r^2 * h")

	sphere := base
	sphere.GeometryType = "sphere"
	require.Contains(t, BuildEvaluationPrompt(sphere), "(4/3) * pi * r^3")
}

func TestBuildEvaluationPromptUnknownGeometryOmitsContext(t *testing.T) {
	prompt := BuildEvaluationPrompt(EvaluationInput{ProblemText: "p", StudentAnswer: "a", GeometryType: "torus"})

	require.NotContains(t, prompt, "Geometry context")
	require.Contains(t, prompt, "## Problem")
}

func TestBuildEvaluationPromptEmptyCriteria(t *testing.T) {
	prompt := BuildEvaluationPrompt(EvaluationInput{ProblemText: "p", StudentAnswer: "a", GeometryType: "sphere"})

	require.Contains(t, prompt, "## Rubric criteria\n[]")
}
