package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/providers"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/sourcefetch"
	"github.com/stretchr/testify/assert"
)

func batchMessage(t *testing.T, id string, sources ...entities.IngestionSource) providers.QueueMessage {
	t.Helper()
	body, err := json.Marshal(entities.IngestionBatchMessage{
		MessageType:    entities.IngestionBatchMessageType,
		MessageVersion: entities.IngestionBatchMessageVersion,
		RequestedAt:    time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		Sources:        sources,
	})
	assert.NoError(t, err)
	return providers.QueueMessage{ID: id, Body: body, ReceiveCount: 1}
}

func batchSource(id string) entities.IngestionSource {
	return entities.IngestionSource{
		SourceID:       id,
		URL:            "https://example.org/" + id,
		Priority:       entities.SourcePriorityMedium,
		FreshnessHours: 24,
	}
}

func newBatchService(repo *fakeSourceRegistry) *IngestionBatchService {
	return NewIngestionBatchService(NewSourceRegistryService(repo), nil, nil)
}

func TestProcessBatch_EmptyBatch(t *testing.T) {
	svc := newBatchService(newFakeSourceRegistry())

	result := svc.ProcessBatch(context.Background(), nil)

	assert.NotNil(t, result.BatchItemFailures)
	assert.Empty(t, result.BatchItemFailures)
}

func TestProcessBatch_AllValid(t *testing.T) {
	repo := newFakeSourceRegistry()
	svc := newBatchService(repo)

	result := svc.ProcessBatch(context.Background(), []providers.QueueMessage{
		batchMessage(t, "m1", batchSource("s1"), batchSource("s2")),
		batchMessage(t, "m2", batchSource("s3")),
	})

	assert.Empty(t, result.BatchItemFailures)
	assert.Len(t, repo.sources, 3)
}

func TestProcessBatch_MalformedMessageFailsAlone(t *testing.T) {
	repo := newFakeSourceRegistry()
	svc := newBatchService(repo)

	messages := []providers.QueueMessage{
		batchMessage(t, "m1", batchSource("s1")),
		{ID: "m2", Body: []byte("{not json")},
		batchMessage(t, "m3", batchSource("s3")),
	}

	result := svc.ProcessBatch(context.Background(), messages)

	assert.Len(t, result.BatchItemFailures, 1)
	assert.Equal(t, "m2", result.BatchItemFailures[0].ItemIdentifier)
	// Valid siblings still landed.
	assert.Len(t, repo.sources, 2)
}

func TestProcessBatch_RejectsWrongEnvelope(t *testing.T) {
	repo := newFakeSourceRegistry()
	svc := newBatchService(repo)

	body, _ := json.Marshal(entities.IngestionBatchMessage{
		MessageType:    "ingestion.batch.completed",
		MessageVersion: entities.IngestionBatchMessageVersion,
		Sources:        []entities.IngestionSource{batchSource("s1")},
	})

	result := svc.ProcessBatch(context.Background(), []providers.QueueMessage{{ID: "m1", Body: body}})

	assert.Len(t, result.BatchItemFailures, 1)
	assert.Empty(t, repo.sources)
}

func TestProcessBatch_RejectsUnsupportedVersion(t *testing.T) {
	svc := newBatchService(newFakeSourceRegistry())

	body, _ := json.Marshal(entities.IngestionBatchMessage{
		MessageType:    entities.IngestionBatchMessageType,
		MessageVersion: "2",
		Sources:        []entities.IngestionSource{batchSource("s1")},
	})

	result := svc.ProcessBatch(context.Background(), []providers.QueueMessage{{ID: "m1", Body: body}})

	assert.Len(t, result.BatchItemFailures, 1)
	assert.Equal(t, "m1", result.BatchItemFailures[0].ItemIdentifier)
}

func TestProcessBatch_RegistryFailureMarksMessage(t *testing.T) {
	repo := newFakeSourceRegistry()
	repo.upsertErr = assert.AnError
	svc := newBatchService(repo)

	result := svc.ProcessBatch(context.Background(), []providers.QueueMessage{
		batchMessage(t, "m1", batchSource("s1")),
	})

	assert.Len(t, result.BatchItemFailures, 1)
	assert.Equal(t, "m1", result.BatchItemFailures[0].ItemIdentifier)
}

func TestProcessBatch_EmptyBodyFailsAlone(t *testing.T) {
	repo := newFakeSourceRegistry()
	svc := newBatchService(repo)

	messages := []providers.QueueMessage{
		{ID: "m1", Body: nil},
		batchMessage(t, "m2", batchSource("s2")),
	}

	result := svc.ProcessBatch(context.Background(), messages)

	assert.Len(t, result.BatchItemFailures, 1)
	assert.Equal(t, "m1", result.BatchItemFailures[0].ItemIdentifier)
	assert.Len(t, repo.sources, 1)
}

type panickyRegistry struct {
	fakeSourceRegistry
}

func (r *panickyRegistry) Upsert(_ context.Context, _ *entities.IngestionSource) error {
	panic("registry store corrupted")
}

func TestProcessBatch_PanicIsIsolated(t *testing.T) {
	repo := &panickyRegistry{fakeSourceRegistry: *newFakeSourceRegistry()}
	svc := NewIngestionBatchService(NewSourceRegistryService(repo), nil, nil)

	assert.NotPanics(t, func() {
		result := svc.ProcessBatch(context.Background(), []providers.QueueMessage{
			batchMessage(t, "m1", batchSource("s1")),
		})
		assert.Len(t, result.BatchItemFailures, 1)
		assert.Equal(t, "m1", result.BatchItemFailures[0].ItemIdentifier)
	})
}

func TestBatchMessageValidate(t *testing.T) {
	valid := entities.IngestionBatchMessage{
		MessageType:    entities.IngestionBatchMessageType,
		MessageVersion: entities.IngestionBatchMessageVersion,
		Sources:        []entities.IngestionSource{batchSource("s1")},
	}
	assert.NoError(t, valid.Validate())

	noSources := valid
	noSources.Sources = nil
	assert.Error(t, noSources.Validate())

	badPriority := valid
	badPriority.Sources = []entities.IngestionSource{{
		SourceID: "s1",
		URL:      "https://example.org/s1",
		Priority: "urgent",
	}}
	assert.Error(t, badPriority.Validate())

	missingURL := valid
	missingURL.Sources = []entities.IngestionSource{{
		SourceID: "s1",
		Priority: entities.SourcePriorityLow,
	}}
	assert.Error(t, missingURL.Validate())
}

func TestProcessBatch_RedeliveryRetriesFailedSync(t *testing.T) {
	repo := newFakeSourceRegistry()
	feed := &fakeFeedClient{
		err: assert.AnError,
		feed: &sourcefetch.SourceFeed{
			Documents: []sourcefetch.FeedDocument{
				feedDoc("d1", "text", "advisory content"),
			},
		},
	}
	index := &recordingIndex{}
	corpus := NewCorpusIngestionService(feed, index, 300)
	svc := NewIngestionBatchService(NewSourceRegistryService(repo), corpus, nil)

	msg := batchMessage(t, "m1", batchSource("s1"))

	// First delivery: the feed is down, the message fails, and the
	// source must not be stamped fresh.
	result := svc.ProcessBatch(context.Background(), []providers.QueueMessage{msg})
	assert.Len(t, result.BatchItemFailures, 1)
	assert.True(t, repo.sources["s1"].LastRefreshedAt.IsZero())
	assert.Empty(t, index.chunks)

	// Redelivery after the feed recovers: the sync runs and the source
	// is stamped fresh.
	feed.err = nil
	result = svc.ProcessBatch(context.Background(), []providers.QueueMessage{msg})
	assert.Empty(t, result.BatchItemFailures)
	assert.Len(t, index.chunks, 1)
	assert.False(t, repo.sources["s1"].LastRefreshedAt.IsZero())
}
