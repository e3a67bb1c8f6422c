package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/providers"
	apperrors "github.com/obiora/CropAdvisoryDesign/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type scriptedGenerator struct {
	responses   []string
	errs        []error
	calls       int
	userPrompts []string
	visionCalls int
}

func (g *scriptedGenerator) next(userPrompt string) (*providers.GenerationResult, error) {
	i := g.calls
	g.calls++
	g.userPrompts = append(g.userPrompts, userPrompt)
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	content := ""
	if i < len(g.responses) {
		content = g.responses[i]
	}
	return &providers.GenerationResult{
		Content: content,
		Usage:   providers.TokenUsage{PromptTokens: 120, CompletionTokens: 80, TotalTokens: 200},
		Model:   "gpt-4o-mini",
	}, nil
}

func (g *scriptedGenerator) InvokeText(_ context.Context, _, userPrompt string) (*providers.GenerationResult, error) {
	return g.next(userPrompt)
}

func (g *scriptedGenerator) InvokeVision(_ context.Context, _, userPrompt, _, _ string) (*providers.GenerationResult, error) {
	g.visionCalls++
	return g.next(userPrompt)
}

const validResponseJSON = `{
  "validation": {"passed": true, "inputQuality": "good"},
  "recommendation": {
    "diagnosis": {"condition": "maize common rust", "confidence": 0.82, "reasoning": "pustule pattern matches"},
    "differentialDiagnoses": [{"condition": "southern rust", "confidence": 0.3}],
    "recommendations": [
      {"action": "apply triazole fungicide", "priority": "high", "citations": ["chunk-1"]}
    ],
    "confidenceExplanation": "symptoms align with retrieved references",
    "disclaimers": ["confirm with a local extension officer"]
  }
}`

const validationFailureJSON = `{
  "validation": {"passed": false, "inputQuality": "poor", "issues": ["image too blurry to assess leaf surface"]}
}`

func textInput() *entities.NormalizedInput {
	return &entities.NormalizedInput{
		ID:          "input-1",
		Modality:    entities.InputModalityLabReport,
		Description: "yellowing between veins on lower leaves",
		Crop:        "maize",
	}
}

func photoInput() *entities.NormalizedInput {
	return &entities.NormalizedInput{
		ID:             "input-2",
		Modality:       entities.InputModalityPhoto,
		ImageBase64:    "aGVsbG8=",
		ImageMediaType: "image/jpeg",
		Crop:           "maize",
	}
}

func emptyBundle() *entities.ContextBundle {
	return &entities.ContextBundle{}
}

func TestGenerate_SucceedsFirstAttempt(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{validResponseJSON}}
	svc := NewRecommendationService(gen, 2, nil)

	success, err := svc.Generate(context.Background(), textInput(), emptyBundle(), "")

	assert.NoError(t, err)
	assert.Equal(t, 1, success.Attempts)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "maize common rust", success.Response.Recommendation.Diagnosis.Condition)
	assert.Equal(t, 200, success.Usage.TotalTokens)
}

func TestGenerate_StripsCodeFences(t *testing.T) {
	fenced := "```json\n" + validResponseJSON + "\n```"
	gen := &scriptedGenerator{responses: []string{fenced}}
	svc := NewRecommendationService(gen, 2, nil)

	success, err := svc.Generate(context.Background(), textInput(), emptyBundle(), "")

	assert.NoError(t, err)
	assert.Equal(t, 1, success.Attempts)
}

func TestGenerate_ValidationFailureIsTerminal(t *testing.T) {
	// passed=false with issues is a valid final answer, not a retry trigger.
	gen := &scriptedGenerator{responses: []string{validationFailureJSON}}
	svc := NewRecommendationService(gen, 2, nil)

	success, err := svc.Generate(context.Background(), photoInput(), emptyBundle(), "")

	assert.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.True(t, success.Response.IsValidationFailure())
	assert.Nil(t, success.Response.Recommendation)
}

func TestGenerate_ValidationFailureWithoutIssuesRetries(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"validation": {"passed": false}}`,
		validationFailureJSON,
	}}
	svc := NewRecommendationService(gen, 2, nil)

	success, err := svc.Generate(context.Background(), textInput(), emptyBundle(), "")

	assert.NoError(t, err)
	assert.Equal(t, 2, success.Attempts)
}

func TestGenerate_RetriesWithFeedbackOnBadJSON(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"this is not json", validResponseJSON}}
	svc := NewRecommendationService(gen, 2, nil)

	success, err := svc.Generate(context.Background(), textInput(), emptyBundle(), "")

	assert.NoError(t, err)
	assert.Equal(t, 2, success.Attempts)
	assert.NotContains(t, gen.userPrompts[0], "previous answer was rejected")
	assert.Contains(t, gen.userPrompts[1], "previous answer was rejected")
	assert.Contains(t, gen.userPrompts[1], "not valid JSON")
}

func TestGenerate_RetriesOnSchemaViolation(t *testing.T) {
	missingRecommendation := `{"validation": {"passed": true}}`
	gen := &scriptedGenerator{responses: []string{missingRecommendation, validResponseJSON}}
	svc := NewRecommendationService(gen, 2, nil)

	success, err := svc.Generate(context.Background(), textInput(), emptyBundle(), "")

	assert.NoError(t, err)
	assert.Equal(t, 2, success.Attempts)
	assert.Contains(t, gen.userPrompts[1], "requires a recommendation payload")
}

func TestGenerate_ExhaustionCarriesLastReason(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"garbage one", "garbage two"}}
	svc := NewRecommendationService(gen, 2, nil)

	success, err := svc.Generate(context.Background(), textInput(), emptyBundle(), "")

	assert.Nil(t, success)
	assert.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExhausted))
	assert.Contains(t, err.Error(), "failed after 2 attempts")
	assert.Contains(t, err.Error(), "not valid JSON")
	assert.Equal(t, 2, gen.calls)
}

func TestGenerate_ExhaustionOnInvocationErrors(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{
		errors.New("upstream timeout"),
		errors.New("upstream timeout"),
	}}
	svc := NewRecommendationService(gen, 2, nil)

	_, err := svc.Generate(context.Background(), textInput(), emptyBundle(), "")

	assert.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExhausted))
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestGenerate_NeverExceedsAttemptBudget(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"bad", "bad", "bad", "bad"}}
	svc := NewRecommendationService(gen, 3, nil)

	_, err := svc.Generate(context.Background(), textInput(), emptyBundle(), "")

	assert.Error(t, err)
	assert.Equal(t, 3, gen.calls)
}

func TestGenerate_CallerFeedbackSeedsFirstAttempt(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{validResponseJSON}}
	svc := NewRecommendationService(gen, 2, nil)

	_, err := svc.Generate(context.Background(), textInput(), emptyBundle(), "cited chunk ids did not exist")

	assert.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.userPrompts[0], "cited chunk ids did not exist")
}

func TestGenerate_UsesVisionPathForPhotos(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{validResponseJSON}}
	svc := NewRecommendationService(gen, 2, nil)

	_, err := svc.Generate(context.Background(), photoInput(), emptyBundle(), "")

	assert.NoError(t, err)
	assert.Equal(t, 1, gen.visionCalls)
}

func TestGenerate_PromptIncludesContextChunks(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{validResponseJSON}}
	svc := NewRecommendationService(gen, 2, nil)

	bundle := &entities.ContextBundle{
		Chunks: []entities.Candidate{
			{ID: "chunk-1", SourceID: "fao-guide", Modality: entities.ModalityText, Content: "rust pustules appear on both leaf surfaces"},
		},
		TotalChunks: 1,
		TotalTokens: EstimateTokens("rust pustules appear on both leaf surfaces"),
	}

	_, err := svc.Generate(context.Background(), textInput(), bundle, "")

	assert.NoError(t, err)
	assert.True(t, strings.Contains(gen.userPrompts[0], "chunk-1"))
	assert.True(t, strings.Contains(gen.userPrompts[0], "rust pustules"))
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, stripCodeFences("  {\"a\":1}  "))
}
