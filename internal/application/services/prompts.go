package services

import (
	"fmt"
	"strings"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
)

const diagnosisSystemPrompt = `You are an agronomy advisor for smallholder farmers. Diagnose crop problems from the evidence provided and return ONLY valid JSON with this schema:
{
  "validation": {
    "passed": boolean,
    "inputQuality": string (e.g. "good", "insufficient"),
    "issues": string[] (required and non-empty when passed is false)
  },
  "recommendation": {
    "diagnosis": {"condition": string, "confidence": number 0-1, "reasoning": string},
    "differentialDiagnoses": [{"condition": string, "confidence": number 0-1, "reasoning": string}] (0-3 items),
    "recommendations": [{"action": string, "details": string, "priority": "immediate"|"short_term"|"preventive", "citations": string[] (chunk ids, at least 1)}] (1-5 items),
    "confidenceExplanation": string,
    "disclaimers": string[] (at least 1)
  }
}
Set validation.passed to false and list issues when the evidence is too poor to diagnose; omit recommendation in that case. When passed is true, every recommendation must cite at least one chunk id from the provided context. Base advice only on the context passages. Do not invent citations. Keep language simple and practical for field use.`

func buildSystemPrompt() string {
	return diagnosisSystemPrompt
}

func buildUserPrompt(input *entities.NormalizedInput, bundle *entities.ContextBundle, feedback string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Crop: %s\n", input.Crop)
	if input.GrowthStage != "" {
		fmt.Fprintf(&b, "Growth stage: %s\n", input.GrowthStage)
	}
	if input.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", input.Location)
	}
	fmt.Fprintf(&b, "Evidence type: %s\n", input.Modality)
	if input.Description != "" {
		fmt.Fprintf(&b, "Farmer's description: %s\n", input.Description)
	}
	if len(input.LabValues) > 0 {
		b.WriteString("Lab values:\n")
		for _, lv := range input.LabValues {
			if lv.Unit != "" {
				fmt.Fprintf(&b, "- %s: %g %s\n", lv.Name, lv.Value, lv.Unit)
			} else {
				fmt.Fprintf(&b, "- %s: %g\n", lv.Name, lv.Value)
			}
		}
	}

	b.WriteString("\nKnowledge base context:\n")
	if len(bundle.Chunks) == 0 {
		b.WriteString("(no relevant passages were retrieved; diagnose from the evidence alone and note the reduced confidence)\n")
	}
	for _, chunk := range bundle.Chunks {
		fmt.Fprintf(&b, "[%s] (source: %s) %s\n", chunk.ID, chunk.SourceID, chunk.Content)
	}

	if feedback != "" {
		fmt.Fprintf(&b, "\nYour previous answer was rejected: %s\nCorrect this and respond again with valid JSON only.\n", feedback)
	}

	return b.String()
}
