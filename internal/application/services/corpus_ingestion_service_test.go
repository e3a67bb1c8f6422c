package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/sourcefetch"
	"github.com/stretchr/testify/assert"
)

type fakeFeedClient struct {
	feed  *sourcefetch.SourceFeed
	err   error
	since time.Time
}

func (f *fakeFeedClient) FetchFeed(_ context.Context, _ string) (*sourcefetch.SourceFeed, error) {
	return f.feed, f.err
}

func (f *fakeFeedClient) FetchFeedSince(_ context.Context, _ string, since time.Time) (*sourcefetch.SourceFeed, error) {
	f.since = since
	return f.feed, f.err
}

func (f *fakeFeedClient) CheckHealth(_ context.Context, _ string) (*sourcefetch.FeedHealthResponse, error) {
	return &sourcefetch.FeedHealthResponse{Healthy: true}, nil
}

type recordingIndex struct {
	chunks   []*entities.KnowledgeChunk
	indexErr error
}

func (r *recordingIndex) Search(_ context.Context, _ string, _ entities.Modality, _ int) ([]entities.Candidate, error) {
	return nil, nil
}

func (r *recordingIndex) Index(_ context.Context, chunk *entities.KnowledgeChunk) error {
	if r.indexErr != nil {
		return r.indexErr
	}
	r.chunks = append(r.chunks, chunk)
	return nil
}

func (r *recordingIndex) Delete(_ context.Context, _ string) error { return nil }

func feedDoc(id, modality, content string, topics ...string) sourcefetch.FeedDocument {
	return sourcefetch.FeedDocument{
		ID:       id,
		Title:    "doc " + id,
		Modality: modality,
		Content:  content,
		Topics:   topics,
	}
}

func TestSyncSource_IndexesDocuments(t *testing.T) {
	client := &fakeFeedClient{feed: &sourcefetch.SourceFeed{
		Documents: []sourcefetch.FeedDocument{
			feedDoc("d1", "text", "rust pustules on maize leaves", "fungal"),
			feedDoc("d2", "image", "close-up of orange pustules", "fungal"),
		},
	}}
	index := &recordingIndex{}
	svc := NewCorpusIngestionService(client, index, 300)

	source := extensionSource()
	summary, err := svc.SyncSource(context.Background(), source)

	assert.NoError(t, err)
	assert.Equal(t, 2, summary.DocumentsFetched)
	assert.Equal(t, 2, summary.ChunksIndexed)
	assert.Equal(t, 0, summary.DocumentsSkipped)
	assert.Len(t, index.chunks, 2)
	assert.Equal(t, source.SourceID, index.chunks[0].SourceID)
	assert.Equal(t, entities.ModalityText, index.chunks[0].Modality)
	assert.Equal(t, entities.ModalityImage, index.chunks[1].Modality)
	// Source tags fold into every chunk's topics.
	assert.Contains(t, index.chunks[0].Topics, "maize")
	assert.Contains(t, index.chunks[0].Topics, "fungal")
}

func TestSyncSource_SkipsUnknownModalityAndEmptyContent(t *testing.T) {
	client := &fakeFeedClient{feed: &sourcefetch.SourceFeed{
		Documents: []sourcefetch.FeedDocument{
			feedDoc("d1", "video", "a field walkthrough"),
			feedDoc("d2", "text", "   "),
			feedDoc("d3", "text", "usable advisory text"),
		},
	}}
	index := &recordingIndex{}
	svc := NewCorpusIngestionService(client, index, 300)

	summary, err := svc.SyncSource(context.Background(), extensionSource())

	assert.NoError(t, err)
	assert.Equal(t, 2, summary.DocumentsSkipped)
	assert.Equal(t, 1, summary.ChunksIndexed)
}

func TestSyncSource_SplitsLongDocuments(t *testing.T) {
	paragraphs := make([]string, 6)
	for i := range paragraphs {
		paragraphs[i] = strings.Repeat("w", 400)
	}
	client := &fakeFeedClient{feed: &sourcefetch.SourceFeed{
		Documents: []sourcefetch.FeedDocument{
			feedDoc("d1", "text", strings.Join(paragraphs, "\n\n")),
		},
	}}
	index := &recordingIndex{}
	svc := NewCorpusIngestionService(client, index, 200)

	summary, err := svc.SyncSource(context.Background(), extensionSource())

	assert.NoError(t, err)
	assert.Greater(t, summary.ChunksIndexed, 1)
	for _, c := range index.chunks {
		assert.LessOrEqual(t, EstimateTokens(c.Content), 200)
	}
}

func TestSyncSource_ChunkIdsAreStable(t *testing.T) {
	feed := &sourcefetch.SourceFeed{
		Documents: []sourcefetch.FeedDocument{
			feedDoc("d1", "text", "stable advisory content"),
		},
	}
	first := &recordingIndex{}
	second := &recordingIndex{}

	_, err := NewCorpusIngestionService(&fakeFeedClient{feed: feed}, first, 300).SyncSource(context.Background(), extensionSource())
	assert.NoError(t, err)
	_, err = NewCorpusIngestionService(&fakeFeedClient{feed: feed}, second, 300).SyncSource(context.Background(), extensionSource())
	assert.NoError(t, err)

	assert.Equal(t, first.chunks[0].ID, second.chunks[0].ID)
}

func TestSyncSource_FetchesIncrementally(t *testing.T) {
	client := &fakeFeedClient{feed: &sourcefetch.SourceFeed{}}
	svc := NewCorpusIngestionService(client, &recordingIndex{}, 300)

	source := extensionSource()
	source.LastRefreshedAt = time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC)

	_, err := svc.SyncSource(context.Background(), source)

	assert.NoError(t, err)
	assert.Equal(t, source.LastRefreshedAt, client.since)
}

func TestSyncSource_PropagatesFetchError(t *testing.T) {
	client := &fakeFeedClient{err: errors.New("feed unreachable")}
	svc := NewCorpusIngestionService(client, &recordingIndex{}, 300)

	_, err := svc.SyncSource(context.Background(), extensionSource())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "fao-maize-guide")
}

func TestSplitContent(t *testing.T) {
	assert.Nil(t, splitContent("   ", 100))

	short := "one small paragraph"
	assert.Equal(t, []string{short}, splitContent(short, 100))

	long := strings.Repeat("a", 300) + "\n\n" + strings.Repeat("b", 300)
	chunks := splitContent(long, 100)
	assert.Len(t, chunks, 2)
}

func TestBuildChunkTopics(t *testing.T) {
	topics := buildChunkTopics(
		[]string{" Fungal ", "rust"},
		[]string{"Maize"},
		[]string{"rust", ""},
	)
	assert.Equal(t, []string{"fungal", "maize", "rust"}, topics)
}
