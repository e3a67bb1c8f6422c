package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/repositories"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/obiora/CropAdvisoryDesign/backend/pkg/errors"
)

// SourceRegistryAdapter implements SourceRegistryRepository
type SourceRegistryAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewSourceRegistryAdapter creates a new source registry adapter
func NewSourceRegistryAdapter(client *postgres.Client) repositories.SourceRegistryRepository {
	return &SourceRegistryAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// ListSources lists all registered sources, highest priority first
func (a *SourceRegistryAdapter) ListSources(ctx context.Context) ([]*entities.IngestionSource, error) {
	query, args, err := a.db.Select(
		"source_id", "url", "priority", "freshness_hours", "tags", "last_refreshed_at",
	).From("ingestion_sources").
		Order(goqu.L("CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END").Asc(), goqu.C("source_id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list ingestion sources", err)
	}
	defer rows.Close()

	sources := []*entities.IngestionSource{}
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan ingestion source", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate ingestion sources", err)
	}

	return sources, nil
}

// GetByID retrieves a source by id
func (a *SourceRegistryAdapter) GetByID(ctx context.Context, sourceID string) (*entities.IngestionSource, error) {
	query, args, err := a.db.Select(
		"source_id", "url", "priority", "freshness_hours", "tags", "last_refreshed_at",
	).From("ingestion_sources").
		Where(goqu.Ex{"source_id": sourceID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	source, err := scanSource(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("ingestion source %s not found", sourceID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get ingestion source", err)
	}

	return source, nil
}

// Upsert registers or refreshes a source, keyed by source id. A zero
// refresh time persists as NULL; the registry service stamps it only
// once the source's corpus sync has landed, so an unsynced source stays
// stale and retryable.
func (a *SourceRegistryAdapter) Upsert(ctx context.Context, source *entities.IngestionSource) error {
	lastRefreshed := sql.NullTime{}
	if !source.LastRefreshedAt.IsZero() {
		lastRefreshed = sql.NullTime{Time: source.LastRefreshedAt, Valid: true}
	}

	record := goqu.Record{
		"source_id":         source.SourceID,
		"url":               source.URL,
		"priority":          string(source.Priority),
		"freshness_hours":   source.FreshnessHours,
		"tags":              pq.Array(source.Tags),
		"last_refreshed_at": lastRefreshed,
	}

	query, args, err := a.db.Insert("ingestion_sources").
		Rows(record).
		OnConflict(goqu.DoUpdate("source_id", record)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to upsert ingestion source", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSource(row rowScanner) (*entities.IngestionSource, error) {
	source := &entities.IngestionSource{}
	var tags pq.StringArray
	var lastRefreshed sql.NullTime

	err := row.Scan(
		&source.SourceID,
		&source.URL,
		&source.Priority,
		&source.FreshnessHours,
		&tags,
		&lastRefreshed,
	)
	if err != nil {
		return nil, err
	}

	source.Tags = tags
	if lastRefreshed.Valid {
		source.LastRefreshedAt = lastRefreshed.Time
	}

	return source, nil
}
