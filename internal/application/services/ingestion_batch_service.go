package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/providers"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/observability"
)

// IngestionBatchService consumes batched corpus refresh requests. Each
// message in a batch is processed independently; one malformed or failing
// message never takes its siblings down. The result lists exactly the
// failed message ids so the queue redelivers only those.
type IngestionBatchService struct {
	registry *SourceRegistryService
	corpus   *CorpusIngestionService
	metrics  *observability.Metrics
}

// NewIngestionBatchService creates a new ingestion batch service. corpus
// may be nil, in which case sources are registered without their
// documents being fetched.
func NewIngestionBatchService(registry *SourceRegistryService, corpus *CorpusIngestionService, metrics *observability.Metrics) *IngestionBatchService {
	return &IngestionBatchService{
		registry: registry,
		corpus:   corpus,
		metrics:  metrics,
	}
}

// ProcessBatch handles one delivered batch. An empty batch yields an
// empty failure list.
func (s *IngestionBatchService) ProcessBatch(ctx context.Context, messages []providers.QueueMessage) entities.BatchResult {
	result := entities.BatchResult{BatchItemFailures: []entities.BatchItemFailure{}}

	for _, msg := range messages {
		outcome := s.processMessage(ctx, msg)
		if outcome.Failed {
			log.Printf("Warning: ingestion message %s failed (delivery %d): %s", msg.ID, msg.ReceiveCount, outcome.Reason)
			result.BatchItemFailures = append(result.BatchItemFailures, entities.BatchItemFailure{
				ItemIdentifier: outcome.MessageID,
			})
			if s.metrics != nil {
				s.metrics.BatchItemFailures.Add(ctx, 1)
			}
		}
	}

	return result
}

// processMessage parses, validates, and applies a single refresh request.
// A panic while handling one message is converted into that message's
// failure so siblings keep processing.
func (s *IngestionBatchService) processMessage(ctx context.Context, msg providers.QueueMessage) (outcome entities.BatchItemOutcome) {
	outcome = entities.BatchItemOutcome{MessageID: msg.ID}

	defer func() {
		if r := recover(); r != nil {
			outcome.Failed = true
			outcome.Reason = fmt.Sprintf("panic while processing message: %v", r)
		}
	}()

	var batch entities.IngestionBatchMessage
	if err := json.Unmarshal(msg.Body, &batch); err != nil {
		outcome.Failed = true
		outcome.Reason = fmt.Sprintf("malformed message body: %v", err)
		return outcome
	}

	if err := batch.Validate(); err != nil {
		outcome.Failed = true
		outcome.Reason = fmt.Sprintf("invalid message: %v", err)
		return outcome
	}

	for i := range batch.Sources {
		source := batch.Sources[i]
		refreshed, err := s.registry.RegisterOrRefresh(ctx, &source)
		if err != nil {
			outcome.Failed = true
			outcome.Reason = fmt.Sprintf("failed to refresh source %s: %v", source.SourceID, err)
			return outcome
		}
		if !refreshed {
			continue
		}

		if s.corpus != nil {
			summary, err := s.corpus.SyncSource(ctx, &source)
			if err != nil {
				outcome.Failed = true
				outcome.Reason = fmt.Sprintf("failed to sync source %s: %v", source.SourceID, err)
				return outcome
			}
			log.Printf("Synced source %s: %d documents, %d chunks indexed", source.SourceID, summary.DocumentsFetched, summary.ChunksIndexed)
		}

		// Stamp freshness only after the sync landed, so a failed sync
		// leaves the source stale and the message retryable.
		if err := s.registry.MarkRefreshed(ctx, &source); err != nil {
			outcome.Failed = true
			outcome.Reason = fmt.Sprintf("failed to mark source %s refreshed: %v", source.SourceID, err)
			return outcome
		}
	}

	return outcome
}
