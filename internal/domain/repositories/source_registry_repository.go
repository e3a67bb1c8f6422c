package repositories

import (
	"context"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
)

// SourceRegistryRepository persists the registry of ingestible knowledge
// sources. Upserts are keyed by source id and therefore idempotent.
type SourceRegistryRepository interface {
	ListSources(ctx context.Context) ([]*entities.IngestionSource, error)
	GetByID(ctx context.Context, sourceID string) (*entities.IngestionSource, error)
	Upsert(ctx context.Context, source *entities.IngestionSource) error
}
