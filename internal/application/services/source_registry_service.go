package services

import (
	"context"
	"time"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/repositories"
	apperrors "github.com/obiora/CropAdvisoryDesign/backend/pkg/errors"
)

// SourceRegistryService owns the registry of ingestible knowledge
// sources. The ingestion worker goes through it rather than touching the
// registry store directly.
type SourceRegistryService struct {
	repo repositories.SourceRegistryRepository
	now  func() time.Time
}

// NewSourceRegistryService creates a new source registry service.
func NewSourceRegistryService(repo repositories.SourceRegistryRepository) *SourceRegistryService {
	return &SourceRegistryService{
		repo: repo,
		now:  time.Now,
	}
}

// ListSources lists the registered sources.
func (s *SourceRegistryService) ListSources(ctx context.Context) ([]*entities.IngestionSource, error) {
	return s.repo.ListSources(ctx)
}

// RegisterOrRefresh upserts a source keyed by its id and reports whether
// a write happened. It is a no-op when the registry already holds an
// equal entry refreshed within its freshness window, which makes
// repeated batch deliveries idempotent.
func (s *SourceRegistryService) RegisterOrRefresh(ctx context.Context, source *entities.IngestionSource) (bool, error) {
	existing, err := s.repo.GetByID(ctx, source.SourceID)
	if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return false, err
	}

	if existing != nil && existing.IsFresh(s.now()) && sourcesEquivalent(existing, source) {
		return false, nil
	}

	refreshed := *source
	if existing != nil {
		refreshed.LastRefreshedAt = existing.LastRefreshedAt
	}
	if err := s.repo.Upsert(ctx, &refreshed); err != nil {
		return false, err
	}
	return true, nil
}

// MarkRefreshed stamps the source's refresh time after its corpus sync
// completes, so a failed sync leaves the source stale and retryable.
func (s *SourceRegistryService) MarkRefreshed(ctx context.Context, source *entities.IngestionSource) error {
	refreshed := *source
	refreshed.LastRefreshedAt = s.now()
	return s.repo.Upsert(ctx, &refreshed)
}

// sourcesEquivalent reports whether a delivered source matches the
// registered one in everything except the refresh timestamp.
func sourcesEquivalent(a, b *entities.IngestionSource) bool {
	if a.URL != b.URL || a.Priority != b.Priority || a.FreshnessHours != b.FreshnessHours {
		return false
	}
	if len(a.Tags) != len(b.Tags) {
		return false
	}
	tags := make(map[string]struct{}, len(a.Tags))
	for _, t := range a.Tags {
		tags[t] = struct{}{}
	}
	for _, t := range b.Tags {
		if _, ok := tags[t]; !ok {
			return false
		}
	}
	return true
}
