package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/providers"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/repositories"
)

// CachedSourceRegistryAdapter wraps SourceRegistryAdapter with caching.
// The source list is read on every diagnosis-adjacent request but only
// changes when an ingestion batch lands, so reads are cached and every
// write invalidates.
type CachedSourceRegistryAdapter struct {
	adapter repositories.SourceRegistryRepository
	cache   providers.CacheProvider
}

// NewCachedSourceRegistryAdapter creates a new cached source registry adapter.
func NewCachedSourceRegistryAdapter(adapter repositories.SourceRegistryRepository, cache providers.CacheProvider) repositories.SourceRegistryRepository {
	return &CachedSourceRegistryAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Cache TTLs (in seconds)
const (
	sourceByIDTTL  = 300 // 5 minutes for a single source
	sourcesListTTL = 180 // 3 minutes for the full list
	sourcesListKey = "sources:list"
)

func sourceCacheKey(sourceID string) string {
	return fmt.Sprintf("source:%s", sourceID)
}

// ListSources returns the registered sources with caching.
func (a *CachedSourceRegistryAdapter) ListSources(ctx context.Context) ([]*entities.IngestionSource, error) {
	if cached, err := a.cache.Get(ctx, sourcesListKey); err == nil {
		var sources []*entities.IngestionSource
		if err := json.Unmarshal(cached, &sources); err == nil {
			return sources, nil
		}
		log.Printf("Failed to unmarshal cached source list: %v", err)
	}

	sources, err := a.adapter.ListSources(ctx)
	if err != nil {
		return nil, err
	}

	// Update cache asynchronously to avoid blocking the response
	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(sources); err == nil {
			if err := a.cache.Set(bgCtx, sourcesListKey, data, sourcesListTTL); err != nil {
				log.Printf("Failed to cache source list: %v", err)
			}
		}
	}()

	return sources, nil
}

// GetByID retrieves a source by id with caching.
func (a *CachedSourceRegistryAdapter) GetByID(ctx context.Context, sourceID string) (*entities.IngestionSource, error) {
	cacheKey := sourceCacheKey(sourceID)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var source entities.IngestionSource
		if err := json.Unmarshal(cached, &source); err == nil {
			return &source, nil
		}
		log.Printf("Failed to unmarshal cached source %s: %v", sourceID, err)
	}

	source, err := a.adapter.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	go func() {
		bgCtx := context.Background()
		if data, err := json.Marshal(source); err == nil {
			if err := a.cache.Set(bgCtx, cacheKey, data, sourceByIDTTL); err != nil {
				log.Printf("Failed to cache source %s: %v", sourceID, err)
			}
		}
	}()

	return source, nil
}

// Upsert writes through to the registry and invalidates both the entry
// and the list. Invalidation happens before returning so the next read
// observes the write.
func (a *CachedSourceRegistryAdapter) Upsert(ctx context.Context, source *entities.IngestionSource) error {
	if err := a.adapter.Upsert(ctx, source); err != nil {
		return err
	}

	if err := a.cache.Delete(ctx, sourceCacheKey(source.SourceID)); err != nil {
		log.Printf("Warning: failed to invalidate cached source %s: %v", source.SourceID, err)
	}
	if err := a.cache.Delete(ctx, sourcesListKey); err != nil {
		log.Printf("Warning: failed to invalidate cached source list: %v", err)
	}

	return nil
}
