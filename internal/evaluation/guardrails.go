package evaluation

import (
	"fmt"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
)

// Guardrails checks a generated response against hard output constraints
// the schema alone cannot express: citations must point at chunks that
// were actually in the prompt context.
type Guardrails struct{}

func NewGuardrails() *Guardrails {
	return &Guardrails{}
}

// CheckResponse returns one violation string per broken constraint. An
// empty slice means the response is clean.
func (g *Guardrails) CheckResponse(response *entities.AIResponse, contextChunkIDs []string) []string {
	violations := []string{}
	if response == nil {
		return append(violations, "response is nil")
	}

	if response.IsValidationFailure() {
		if len(response.Validation.Issues) == 0 {
			violations = append(violations, "validation failure lists no issues")
		}
		return violations
	}

	rec := response.Recommendation
	if rec == nil {
		return append(violations, "passed validation but no recommendation")
	}

	if rec.Diagnosis.Confidence < 0 || rec.Diagnosis.Confidence > 1 {
		violations = append(violations, fmt.Sprintf("diagnosis confidence %.2f out of range", rec.Diagnosis.Confidence))
	}
	if len(rec.Disclaimers) == 0 {
		violations = append(violations, "no disclaimers")
	}

	inContext := idSet(contextChunkIDs)
	for _, action := range rec.Recommendations {
		if len(action.Citations) == 0 {
			violations = append(violations, fmt.Sprintf("action %q has no citations", action.Action))
		}
		for _, cited := range action.Citations {
			if _, ok := inContext[cited]; !ok {
				violations = append(violations, fmt.Sprintf("action %q cites %s which was not in context", action.Action, cited))
			}
		}
	}

	return violations
}
