package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/repositories"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/sourcefetch"
)

// CorpusIngestionSummary reports what one source sync produced.
type CorpusIngestionSummary struct {
	DocumentsFetched int `json:"documents_fetched"`
	ChunksIndexed    int `json:"chunks_indexed"`
	DocumentsSkipped int `json:"documents_skipped"`
}

// CorpusIngestionService hydrates a registered source's documents into
// the search index. Chunk ids are stable across syncs, so re-indexing the
// same feed upserts in place instead of duplicating.
type CorpusIngestionService struct {
	client     sourcefetch.Client
	searchRepo repositories.KnowledgeSearchRepository
	chunkSize  int
}

// NewCorpusIngestionService creates a new corpus ingestion service.
// chunkSize is the target chunk length in tokens.
func NewCorpusIngestionService(client sourcefetch.Client, searchRepo repositories.KnowledgeSearchRepository, chunkSize int) *CorpusIngestionService {
	if chunkSize <= 0 {
		chunkSize = 300
	}
	return &CorpusIngestionService{
		client:     client,
		searchRepo: searchRepo,
		chunkSize:  chunkSize,
	}
}

// SyncSource fetches the source's feed and indexes every document. A
// stale source fetches incrementally from its last refresh time.
func (s *CorpusIngestionService) SyncSource(ctx context.Context, source *entities.IngestionSource) (*CorpusIngestionSummary, error) {
	if s.client == nil {
		return nil, fmt.Errorf("source feed client not configured")
	}

	summary := &CorpusIngestionSummary{}

	feed, err := s.client.FetchFeedSince(ctx, source.URL, source.LastRefreshedAt)
	if err != nil {
		return summary, fmt.Errorf("failed to fetch feed for source %s: %w", source.SourceID, err)
	}

	for _, doc := range feed.Documents {
		summary.DocumentsFetched++

		modality, ok := parseModality(doc.Modality)
		if !ok || strings.TrimSpace(doc.Content) == "" {
			summary.DocumentsSkipped++
			continue
		}

		topics := buildChunkTopics(doc.Topics, doc.Crops, source.Tags)

		for i, content := range splitContent(doc.Content, s.chunkSize) {
			chunk := &entities.KnowledgeChunk{
				ID:        chunkID(source.SourceID, doc.ID, i),
				SourceID:  source.SourceID,
				Modality:  modality,
				Topics:    topics,
				Content:   content,
				CreatedAt: time.Now().UTC(),
			}
			if err := s.searchRepo.Index(ctx, chunk); err != nil {
				return summary, fmt.Errorf("failed to index chunk %s: %w", chunk.ID, err)
			}
			summary.ChunksIndexed++
		}
	}

	return summary, nil
}

func parseModality(raw string) (entities.Modality, bool) {
	switch entities.Modality(strings.ToLower(strings.TrimSpace(raw))) {
	case entities.ModalityText:
		return entities.ModalityText, true
	case entities.ModalityImage:
		return entities.ModalityImage, true
	}
	return "", false
}

// chunkID derives a stable id from the source, document, and chunk
// position, so repeated syncs upsert rather than duplicate.
func chunkID(sourceID, docID string, position int) string {
	h := fnv.New64a()
	h.Write([]byte(sourceID))
	h.Write([]byte{0})
	h.Write([]byte(docID))
	return fmt.Sprintf("chunk_%x_%d", h.Sum64(), position)
}
