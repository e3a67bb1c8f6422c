package entities

// InputModality describes what kind of evidence a diagnosis request carries.
type InputModality string

const (
	InputModalityPhoto     InputModality = "photo"
	InputModalityLabReport InputModality = "lab_report"
	InputModalityHybrid    InputModality = "hybrid"
)

// LabValue is a single structured measurement from a lab report.
type LabValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// NormalizedInput is the caller-supplied diagnosis input after upstream
// normalization. Upstream guarantees at least one of image, description
// or lab values is present.
type NormalizedInput struct {
	ID             string        `json:"id"`
	Modality       InputModality `json:"modality"`
	ImageBase64    string        `json:"image_base64,omitempty"`
	ImageMediaType string        `json:"image_media_type,omitempty"`
	Description    string        `json:"description,omitempty"`
	LabValues      []LabValue    `json:"lab_values,omitempty"`
	Crop           string        `json:"crop"`
	Location       string        `json:"location,omitempty"`
	GrowthStage    string        `json:"growth_stage,omitempty"`
}

// HasImage reports whether the input carries photographic evidence that
// the vision invocation path can use.
func (n *NormalizedInput) HasImage() bool {
	return n.ImageBase64 != "" &&
		(n.Modality == InputModalityPhoto || n.Modality == InputModalityHybrid)
}

// ResponseValidation is the discriminant of the AI response union. When
// Passed is false the response is a validation failure and Issues explains
// why; when true the recommendation payload is active.
type ResponseValidation struct {
	Passed       bool     `json:"passed"`
	InputQuality string   `json:"inputQuality,omitempty"`
	Issues       []string `json:"issues,omitempty"`
}

// AIResponse is the structured output of the generative capability.
// Exactly one variant is active: a validation failure (Passed false,
// non-empty Issues) or a recommendation (Passed true, Recommendation set).
type AIResponse struct {
	Validation     ResponseValidation    `json:"validation"`
	Recommendation *RecommendationOutput `json:"recommendation,omitempty"`
}

// IsValidationFailure reports whether the failure variant is active.
func (r *AIResponse) IsValidationFailure() bool {
	return !r.Validation.Passed
}

// Diagnosis is a single diagnosed condition with the model's confidence.
type Diagnosis struct {
	Condition  string  `json:"condition"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// RecommendationAction is one recommended intervention. Every action must
// cite at least one retrieved chunk so the advice is traceable back to the
// knowledge corpus.
type RecommendationAction struct {
	Action    string   `json:"action"`
	Details   string   `json:"details,omitempty"`
	Priority  string   `json:"priority,omitempty"`
	Citations []string `json:"citations"`
}

// RecommendationOutput is the successful diagnosis variant of AIResponse.
type RecommendationOutput struct {
	Diagnosis             Diagnosis              `json:"diagnosis"`
	DifferentialDiagnoses []Diagnosis            `json:"differentialDiagnoses,omitempty"`
	Recommendations       []RecommendationAction `json:"recommendations"`
	ConfidenceExplanation string                 `json:"confidenceExplanation"`
	Disclaimers           []string               `json:"disclaimers"`
}

// CitedChunkIDs returns the distinct chunk ids cited across all
// recommendation actions.
func (o *RecommendationOutput) CitedChunkIDs() []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, rec := range o.Recommendations {
		for _, c := range rec.Citations {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			ids = append(ids, c)
		}
	}
	return ids
}
