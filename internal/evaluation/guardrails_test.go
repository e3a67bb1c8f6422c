package evaluation

import (
	"testing"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/stretchr/testify/assert"
)

func cleanResponse() *entities.AIResponse {
	return &entities.AIResponse{
		Validation: entities.ResponseValidation{Passed: true},
		Recommendation: &entities.RecommendationOutput{
			Diagnosis: entities.Diagnosis{Condition: "maize common rust", Confidence: 0.8},
			Recommendations: []entities.RecommendationAction{
				{Action: "apply fungicide", Citations: []string{"chunk-1"}},
			},
			ConfidenceExplanation: "matches reference symptoms",
			Disclaimers:           []string{"confirm locally"},
		},
	}
}

func TestCheckResponse_Clean(t *testing.T) {
	g := NewGuardrails()

	violations := g.CheckResponse(cleanResponse(), []string{"chunk-1", "chunk-2"})

	assert.Empty(t, violations)
}

func TestCheckResponse_UngroundedCitation(t *testing.T) {
	g := NewGuardrails()

	violations := g.CheckResponse(cleanResponse(), []string{"chunk-2"})

	assert.Len(t, violations, 1)
	assert.Contains(t, violations[0], "chunk-1")
}

func TestCheckResponse_ValidationFailureNeedsIssues(t *testing.T) {
	g := NewGuardrails()

	response := &entities.AIResponse{
		Validation: entities.ResponseValidation{Passed: false},
	}
	assert.NotEmpty(t, g.CheckResponse(response, nil))

	response.Validation.Issues = []string{"image too dark"}
	assert.Empty(t, g.CheckResponse(response, nil))
}

func TestCheckResponse_ConfidenceAndDisclaimers(t *testing.T) {
	g := NewGuardrails()

	response := cleanResponse()
	response.Recommendation.Diagnosis.Confidence = 1.4
	response.Recommendation.Disclaimers = nil

	violations := g.CheckResponse(response, []string{"chunk-1"})

	assert.Len(t, violations, 2)
}
