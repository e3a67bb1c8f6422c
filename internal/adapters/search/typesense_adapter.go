package search

import (
	"context"
	"fmt"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/repositories"
	tsclient "github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

// KnowledgeAdapter implements candidate search over the Typesense
// knowledge chunk collection. Text and image-derived chunks live in the
// same collection, separated by the modality field, so each modality can
// be searched independently.
type KnowledgeAdapter struct {
	client *tsclient.Client
}

// Ensure KnowledgeAdapter implements KnowledgeSearchRepository
var _ repositories.KnowledgeSearchRepository = (*KnowledgeAdapter)(nil)

// NewKnowledgeAdapter creates a new knowledge search adapter
func NewKnowledgeAdapter(client *tsclient.Client) *KnowledgeAdapter {
	return &KnowledgeAdapter{client: client}
}

// Search returns candidates for one modality, ordered by descending
// similarity. A connectivity failure is wrapped in ErrSearchUnavailable
// so callers can choose to degrade instead of aborting.
func (a *KnowledgeAdapter) Search(ctx context.Context, query string, modality entities.Modality, limit int) ([]entities.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}

	searchParams := &api.SearchCollectionParams{
		Q:             pointer.String(query),
		QueryBy:       pointer.String("embedding"),
		FilterBy:      pointer.String(fmt.Sprintf("modality:=%s", modality)),
		Page:          pointer.Int(1),
		PerPage:       pointer.Int(limit),
		ExcludeFields: pointer.String("embedding"),
	}

	result, err := a.client.Client().Collection(tsclient.KnowledgeChunksCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repositories.ErrSearchUnavailable, err)
	}

	candidates := []entities.Candidate{}
	if result.Hits == nil {
		return candidates, nil
	}

	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document

		id, _ := doc["id"].(string)
		if id == "" {
			continue
		}
		content, _ := doc["content"].(string)
		sourceID, _ := doc["source_id"].(string)

		candidates = append(candidates, entities.Candidate{
			ID:         id,
			Similarity: similarityFromHit(hit),
			SourceID:   sourceID,
			Modality:   modality,
			Content:    content,
		})
	}

	return candidates, nil
}

// similarityFromHit converts the hit's cosine vector distance into a
// similarity in [0,1]. Hits without distance information score zero.
func similarityFromHit(hit api.SearchResultHit) float64 {
	if hit.VectorDistance == nil {
		return 0
	}
	similarity := 1.0 - float64(*hit.VectorDistance)
	if similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}

// Index upserts a corpus chunk document
func (a *KnowledgeAdapter) Index(ctx context.Context, chunk *entities.KnowledgeChunk) error {
	document := map[string]interface{}{
		"id":         chunk.ID,
		"content":    chunk.Content,
		"modality":   string(chunk.Modality),
		"source_id":  chunk.SourceID,
		"topics":     chunk.Topics,
		"created_at": chunk.CreatedAt.Unix(),
	}

	_, err := a.client.Client().Collection(tsclient.KnowledgeChunksCollection).Documents().Upsert(ctx, document)
	if err != nil {
		return fmt.Errorf("failed to index knowledge chunk: %w", err)
	}

	return nil
}

// Delete removes a chunk from the index
func (a *KnowledgeAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.KnowledgeChunksCollection).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge chunk from index: %w", err)
	}
	return nil
}
