package services

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonschema"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/providers"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/observability"
	apperrors "github.com/obiora/CropAdvisoryDesign/backend/pkg/errors"
)

//go:embed ai_response_schema.json
var aiResponseSchema []byte

const defaultMaxAttempts = 2

// GenerationAttempt captures what happened during one
// generate-and-validate cycle. It exists only within a single Generate
// call.
type GenerationAttempt struct {
	AttemptNumber   int
	RawResponse     string
	ParseError      string
	ValidationError string
}

// failureReason returns the attempt's concrete error, parse errors first.
func (a *GenerationAttempt) failureReason() string {
	if a.ParseError != "" {
		return a.ParseError
	}
	return a.ValidationError
}

// GenerationSuccess is a validated response plus the invocation metadata
// the caller persists alongside it.
type GenerationSuccess struct {
	Response *entities.AIResponse
	Usage    providers.TokenUsage
	Model    string
	Attempts int
}

// RecommendationService builds prompts from normalized input and the
// assembled context, invokes the generative capability, and validates the
// structured response, retrying with corrective feedback inside a bounded
// loop.
type RecommendationService struct {
	generator   providers.GenerationProvider
	schema      *jsonschema.Schema
	maxAttempts int
	metrics     *observability.Metrics
}

// NewRecommendationService creates a new recommendation service. It
// panics if the embedded response schema does not compile, since that is
// a build defect rather than a runtime condition.
func NewRecommendationService(generator providers.GenerationProvider, maxAttempts int, metrics *observability.Metrics) *RecommendationService {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(aiResponseSchema)
	if err != nil {
		panic(fmt.Sprintf("ai response schema does not compile: %v", err))
	}

	return &RecommendationService{
		generator:   generator,
		schema:      schema,
		maxAttempts: maxAttempts,
		metrics:     metrics,
	}
}

// Generate runs the bounded generation loop. A caller-supplied
// retryFeedback seeds the first attempt's prompt; it does not consume an
// attempt. On success the response is schema-valid; on exhaustion the
// returned error carries the last attempt's concrete failure reason.
func (s *RecommendationService) Generate(ctx context.Context, input *entities.NormalizedInput, bundle *entities.ContextBundle, retryFeedback string) (*GenerationSuccess, error) {
	systemPrompt := buildSystemPrompt()
	feedback := strings.TrimSpace(retryFeedback)

	var lastAttempt *GenerationAttempt

	for attemptNumber := 1; attemptNumber <= s.maxAttempts; attemptNumber++ {
		attempt := &GenerationAttempt{AttemptNumber: attemptNumber}
		lastAttempt = attempt

		userPrompt := buildUserPrompt(input, bundle, feedback)

		result, err := s.invoke(ctx, input, systemPrompt, userPrompt)
		if err != nil {
			// Includes external cancellation mid-attempt; eligible for retry.
			attempt.ParseError = fmt.Sprintf("generation invocation failed: %v", err)
			feedback = attempt.ParseError
			observability.RecordGenerationAttempt(ctx, s.metrics, "invocation_error")
			continue
		}

		attempt.RawResponse = result.Content
		cleaned := stripCodeFences(result.Content)

		var response entities.AIResponse
		if err := json.Unmarshal([]byte(cleaned), &response); err != nil {
			attempt.ParseError = fmt.Sprintf("response is not valid JSON: %v", err)
			feedback = attempt.ParseError
			observability.RecordGenerationAttempt(ctx, s.metrics, "parse_error")
			continue
		}

		if err := s.validate(cleaned, &response); err != nil {
			attempt.ValidationError = err.Error()
			feedback = attempt.ValidationError
			observability.RecordGenerationAttempt(ctx, s.metrics, "validation_error")
			continue
		}

		observability.RecordGenerationAttempt(ctx, s.metrics, "success")
		return &GenerationSuccess{
			Response: &response,
			Usage:    result.Usage,
			Model:    result.Model,
			Attempts: attemptNumber,
		}, nil
	}

	reason := "no generation attempts were made"
	if lastAttempt != nil && lastAttempt.failureReason() != "" {
		reason = lastAttempt.failureReason()
	}
	return nil, apperrors.NewExhaustedError(
		fmt.Sprintf("generation failed after %d attempts", s.maxAttempts),
		errors.New(reason),
	)
}

// invoke selects the vision path when photographic evidence is attached,
// the text path otherwise.
func (s *RecommendationService) invoke(ctx context.Context, input *entities.NormalizedInput, systemPrompt, userPrompt string) (*providers.GenerationResult, error) {
	if input.HasImage() {
		return s.generator.InvokeVision(ctx, systemPrompt, userPrompt, input.ImageBase64, input.ImageMediaType)
	}
	return s.generator.InvokeText(ctx, systemPrompt, userPrompt)
}

// validate checks the parsed response against the embedded schema and the
// union rules the schema cannot express.
func (s *RecommendationService) validate(raw string, response *entities.AIResponse) error {
	result := s.schema.ValidateJSON([]byte(raw))
	if !result.IsValid() {
		return fmt.Errorf("response violates schema: %v", result.Errors)
	}

	if response.IsValidationFailure() {
		if len(response.Validation.Issues) == 0 {
			return errors.New("validation failure must list at least one issue")
		}
		return nil
	}

	if response.Recommendation == nil {
		return errors.New("passed validation requires a recommendation payload")
	}

	return nil
}

// stripCodeFences removes an optional leading ```json or ``` marker and a
// trailing ``` marker around the model output.
func stripCodeFences(content string) string {
	cleaned := strings.TrimSpace(content)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}
