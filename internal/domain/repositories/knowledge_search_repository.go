package repositories

import (
	"context"
	"errors"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
)

// ErrSearchUnavailable marks a hard connectivity failure of the search
// backend. Callers decide whether to proceed with degraded context; the
// diagnosis path proceeds with an empty candidate set.
var ErrSearchUnavailable = errors.New("knowledge search unavailable")

// KnowledgeSearchRepository is the ranked-candidate source behind the
// retrieval pipeline. Search must be callable independently per modality
// so text and image candidates can be merged downstream.
type KnowledgeSearchRepository interface {
	// Search returns candidates ordered by descending similarity,
	// at most limit of them. It has no side effects.
	Search(ctx context.Context, query string, modality entities.Modality, limit int) ([]entities.Candidate, error)

	// Index upserts a corpus chunk into the search index.
	Index(ctx context.Context, chunk *entities.KnowledgeChunk) error

	// Delete removes a chunk from the index.
	Delete(ctx context.Context, id string) error
}
