package services

import (
	"context"
	"testing"
	"time"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	apperrors "github.com/obiora/CropAdvisoryDesign/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeSourceRegistry struct {
	sources   map[string]*entities.IngestionSource
	upserts   int
	getErr    error
	upsertErr error
}

func newFakeSourceRegistry() *fakeSourceRegistry {
	return &fakeSourceRegistry{sources: map[string]*entities.IngestionSource{}}
}

func (r *fakeSourceRegistry) ListSources(_ context.Context) ([]*entities.IngestionSource, error) {
	out := []*entities.IngestionSource{}
	for _, s := range r.sources {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeSourceRegistry) GetByID(_ context.Context, sourceID string) (*entities.IngestionSource, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	s, ok := r.sources[sourceID]
	if !ok {
		return nil, apperrors.NewNotFoundError("source not found")
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSourceRegistry) Upsert(_ context.Context, source *entities.IngestionSource) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts++
	copied := *source
	r.sources[source.SourceID] = &copied
	return nil
}

func extensionSource() *entities.IngestionSource {
	return &entities.IngestionSource{
		SourceID:       "fao-maize-guide",
		URL:            "https://example.org/fao/maize",
		Priority:       entities.SourcePriorityHigh,
		FreshnessHours: 24,
		Tags:           []string{"maize", "fungal"},
	}
}

func TestRegisterOrRefresh_InsertsNewSource(t *testing.T) {
	repo := newFakeSourceRegistry()
	svc := NewSourceRegistryService(repo)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	refreshed, err := svc.RegisterOrRefresh(context.Background(), extensionSource())

	assert.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, 1, repo.upserts)
	// The freshness stamp is only written once the sync completes.
	assert.True(t, repo.sources["fao-maize-guide"].LastRefreshedAt.IsZero())

	assert.NoError(t, svc.MarkRefreshed(context.Background(), extensionSource()))
	assert.Equal(t, now, repo.sources["fao-maize-guide"].LastRefreshedAt)
}

func TestRegisterOrRefresh_FreshEquivalentSourceIsNoOp(t *testing.T) {
	repo := newFakeSourceRegistry()
	svc := NewSourceRegistryService(repo)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	existing := extensionSource()
	existing.LastRefreshedAt = now.Add(-2 * time.Hour)
	repo.sources[existing.SourceID] = existing

	refreshed, err := svc.RegisterOrRefresh(context.Background(), extensionSource())

	assert.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, 0, repo.upserts)
}

func TestRegisterOrRefresh_StaleSourceIsRefreshed(t *testing.T) {
	repo := newFakeSourceRegistry()
	svc := NewSourceRegistryService(repo)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	existing := extensionSource()
	existing.LastRefreshedAt = now.Add(-48 * time.Hour)
	repo.sources[existing.SourceID] = existing

	refreshed, err := svc.RegisterOrRefresh(context.Background(), extensionSource())

	assert.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, 1, repo.upserts)
}

func TestRegisterOrRefresh_ChangedFieldsForceUpsert(t *testing.T) {
	repo := newFakeSourceRegistry()
	svc := NewSourceRegistryService(repo)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	existing := extensionSource()
	existing.LastRefreshedAt = now.Add(-time.Hour)
	repo.sources[existing.SourceID] = existing

	changed := extensionSource()
	changed.Priority = entities.SourcePriorityLow

	refreshed, err := svc.RegisterOrRefresh(context.Background(), changed)

	assert.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, 1, repo.upserts)
	assert.Equal(t, entities.SourcePriorityLow, repo.sources["fao-maize-guide"].Priority)
}

func TestRegisterOrRefresh_TagOrderDoesNotMatter(t *testing.T) {
	repo := newFakeSourceRegistry()
	svc := NewSourceRegistryService(repo)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	existing := extensionSource()
	existing.LastRefreshedAt = now.Add(-time.Hour)
	repo.sources[existing.SourceID] = existing

	reordered := extensionSource()
	reordered.Tags = []string{"fungal", "maize"}

	refreshed, err := svc.RegisterOrRefresh(context.Background(), reordered)

	assert.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, 0, repo.upserts)
}

func TestRegisterOrRefresh_PropagatesLookupError(t *testing.T) {
	repo := newFakeSourceRegistry()
	repo.getErr = apperrors.NewInternalError("registry unreachable", nil)
	svc := NewSourceRegistryService(repo)

	_, err := svc.RegisterOrRefresh(context.Background(), extensionSource())

	assert.Error(t, err)
	assert.Equal(t, 0, repo.upserts)
}

func TestRegisterOrRefresh_FailedSyncStaysRetryable(t *testing.T) {
	// Registration must not stamp the refresh time. If the corpus sync
	// fails and MarkRefreshed is never called, a redelivered message has
	// to trigger the sync again instead of no-opping on a fresh row.
	repo := newFakeSourceRegistry()
	svc := NewSourceRegistryService(repo)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	refreshed, err := svc.RegisterOrRefresh(context.Background(), extensionSource())
	assert.NoError(t, err)
	assert.True(t, refreshed)
	assert.True(t, repo.sources["fao-maize-guide"].LastRefreshedAt.IsZero())

	// Sync failed, so MarkRefreshed was skipped. Redelivery must refresh.
	refreshed, err = svc.RegisterOrRefresh(context.Background(), extensionSource())
	assert.NoError(t, err)
	assert.True(t, refreshed)
}
