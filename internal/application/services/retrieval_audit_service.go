package services

import (
	"context"
	"log"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/repositories"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/observability"
)

const defaultMissedThreshold = 0.4

// RetrievalAuditService records which candidates were retrieved,
// assembled, and cited for a completed diagnosis. Record swallows every
// failure at its own boundary, so callers can fire it from a goroutine
// without the write ever degrading the diagnosis response.
type RetrievalAuditService struct {
	repo            repositories.RetrievalAuditRepository
	missedThreshold float64
	metrics         *observability.Metrics
}

// NewRetrievalAuditService creates a new retrieval audit service.
func NewRetrievalAuditService(repo repositories.RetrievalAuditRepository, missedThreshold float64, metrics *observability.Metrics) *RetrievalAuditService {
	if missedThreshold <= 0 {
		missedThreshold = defaultMissedThreshold
	}
	return &RetrievalAuditService{
		repo:            repo,
		missedThreshold: missedThreshold,
		metrics:         metrics,
	}
}

// Record persists an audit snapshot. Persistence failures and panics are
// caught here, logged, and discarded; Record never returns or raises an
// error.
func (s *RetrievalAuditService) Record(
	ctx context.Context,
	inputID, recommendationID string,
	plan entities.RetrievalPlan,
	textCandidates, imageCandidates []entities.Candidate,
	assembledChunkIDs, citedChunkIDs []string,
) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: retrieval audit write panicked for input %s: %v", inputID, r)
		}
	}()

	record := s.buildRecord(inputID, recommendationID, plan, textCandidates, imageCandidates, assembledChunkIDs, citedChunkIDs)

	if err := s.repo.Create(ctx, record); err != nil {
		log.Printf("Warning: failed to write retrieval audit record for input %s: %v", inputID, err)
		if s.metrics != nil {
			s.metrics.AuditWriteFailures.Add(ctx, 1)
		}
	}
}

func (s *RetrievalAuditService) buildRecord(
	inputID, recommendationID string,
	plan entities.RetrievalPlan,
	textCandidates, imageCandidates []entities.Candidate,
	assembledChunkIDs, citedChunkIDs []string,
) *entities.RetrievalAuditRecord {
	assembled := toSet(assembledChunkIDs)
	cited := toSet(citedChunkIDs)

	candidates := make([]entities.AuditedChunk, 0, len(textCandidates)+len(imageCandidates))
	for _, c := range textCandidates {
		candidates = append(candidates, s.auditChunk(c, assembled, cited))
	}
	for _, c := range imageCandidates {
		candidates = append(candidates, s.auditChunk(c, assembled, cited))
	}

	used := []entities.AuditedChunk{}
	missed := []entities.AuditedChunk{}
	for _, c := range candidates {
		if c.Cited {
			used = append(used, c)
			continue
		}
		if c.Similarity > s.missedThreshold {
			missed = append(missed, c)
		}
	}

	return &entities.RetrievalAuditRecord{
		InputID:          inputID,
		RecommendationID: recommendationID,
		Plan:             plan,
		Candidates:       candidates,
		UsedChunks:       used,
		MissedChunks:     missed,
	}
}

func (s *RetrievalAuditService) auditChunk(c entities.Candidate, assembled, cited map[string]struct{}) entities.AuditedChunk {
	_, wasAssembled := assembled[c.ID]
	_, wasCited := cited[c.ID]
	return entities.AuditedChunk{
		ID:         c.ID,
		SourceID:   c.SourceID,
		Modality:   c.Modality,
		Similarity: c.Similarity,
		Assembled:  wasAssembled,
		Cited:      wasCited,
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
