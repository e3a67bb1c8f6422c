package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/repositories"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/observability"
)

const defaultSearchLimit = 10

// DiagnosisResult is the outcome of one diagnosis request.
type DiagnosisResult struct {
	RecommendationID string               `json:"recommendation_id"`
	Response         *entities.AIResponse `json:"response"`
	Model            string               `json:"model"`
	Attempts         int                  `json:"attempts"`
	ContextChunks    int                  `json:"context_chunks"`
}

// DiagnosisService orchestrates the retrieval-augmented diagnosis
// pipeline: parallel candidate search per modality, context assembly,
// generation, and the audit side channel.
type DiagnosisService struct {
	searchRepo  repositories.KnowledgeSearchRepository
	assembler   *ContextAssemblerService
	recommender *RecommendationService
	auditor     *RetrievalAuditService
	searchLimit int
	metrics     *observability.Metrics
}

// NewDiagnosisService creates a new diagnosis service.
func NewDiagnosisService(
	searchRepo repositories.KnowledgeSearchRepository,
	assembler *ContextAssemblerService,
	recommender *RecommendationService,
	auditor *RetrievalAuditService,
	searchLimit int,
	metrics *observability.Metrics,
) *DiagnosisService {
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	return &DiagnosisService{
		searchRepo:  searchRepo,
		assembler:   assembler,
		recommender: recommender,
		auditor:     auditor,
		searchLimit: searchLimit,
		metrics:     metrics,
	}
}

// Diagnose runs the full pipeline for one normalized input. Retrieval
// outages degrade to an empty candidate set per modality; the only error
// this method returns is generation exhaustion.
func (s *DiagnosisService) Diagnose(ctx context.Context, input *entities.NormalizedInput) (*DiagnosisResult, error) {
	ctx, span := observability.StartSpan(ctx, "diagnosis.pipeline")
	defer span.End()

	logger := observability.LoggerFromContext(ctx)
	if s.metrics != nil {
		s.metrics.DiagnosisCount.Add(ctx, 1)
	}

	query := buildRetrievalQuery(input)
	plan := entities.RetrievalPlan{Query: query, Topics: retrievalTopics(input)}

	// Text and image retrieval are independent; run both and join before
	// assembly. Each leg degrades to empty on failure, so the group never
	// returns an error.
	var textCandidates, imageCandidates []entities.Candidate
	g, searchCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		textCandidates = s.searchModality(searchCtx, query, entities.ModalityText)
		return nil
	})
	g.Go(func() error {
		imageCandidates = s.searchModality(searchCtx, query, entities.ModalityImage)
		return nil
	})
	_ = g.Wait()

	bundle := s.assembler.Assemble(textCandidates, imageCandidates)

	success, err := s.recommender.Generate(ctx, input, bundle, "")
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	recommendationID := uuid.New().String()

	citedChunkIDs := []string{}
	if success.Response.Recommendation != nil {
		citedChunkIDs = success.Response.Recommendation.CitedChunkIDs()
	}

	// Audit write is fire-and-forget: fresh context, failures swallowed
	// inside Record.
	go func() {
		auditCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.auditor.Record(auditCtx, input.ID, recommendationID, plan,
			textCandidates, imageCandidates, bundle.ChunkIDs(), citedChunkIDs)
	}()

	logger.Info().
		Str("input_id", input.ID).
		Str("recommendation_id", recommendationID).
		Int("context_chunks", bundle.TotalChunks).
		Int("attempts", success.Attempts).
		Msg("diagnosis generated")

	return &DiagnosisResult{
		RecommendationID: recommendationID,
		Response:         success.Response,
		Model:            success.Model,
		Attempts:         success.Attempts,
		ContextChunks:    bundle.TotalChunks,
	}, nil
}

// searchModality runs one retrieval leg, degrading to an empty candidate
// set on any failure so a search outage never aborts the diagnosis.
func (s *DiagnosisService) searchModality(ctx context.Context, query string, modality entities.Modality) []entities.Candidate {
	start := time.Now()
	candidates, err := s.searchRepo.Search(ctx, query, modality, s.searchLimit)
	observability.RecordSearchMetric(ctx, s.metrics, string(modality), time.Since(start), err != nil)
	if err != nil {
		log := observability.LoggerFromContext(ctx)
		log.Warn().Err(err).Str("modality", string(modality)).Msg("candidate search degraded to empty set")
		return []entities.Candidate{}
	}
	return candidates
}

// buildRetrievalQuery folds the normalized input into one search query.
func buildRetrievalQuery(input *entities.NormalizedInput) string {
	parts := []string{}
	if input.Crop != "" {
		parts = append(parts, input.Crop)
	}
	if input.GrowthStage != "" {
		parts = append(parts, input.GrowthStage)
	}
	if input.Description != "" {
		parts = append(parts, input.Description)
	}
	for _, lv := range input.LabValues {
		parts = append(parts, lv.Name)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func retrievalTopics(input *entities.NormalizedInput) []string {
	topics := []string{}
	if input.Crop != "" {
		topics = append(topics, strings.ToLower(input.Crop))
	}
	if input.GrowthStage != "" {
		topics = append(topics, strings.ToLower(input.GrowthStage))
	}
	return topics
}
