package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/repositories"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/obiora/CropAdvisoryDesign/backend/pkg/errors"
)

// RetrievalAuditAdapter implements RetrievalAuditRepository. Records are
// append-only; chunk lists are stored as JSONB for offline analysis.
type RetrievalAuditAdapter struct {
	client *postgres.Client
}

// NewRetrievalAuditAdapter creates a new retrieval audit adapter
func NewRetrievalAuditAdapter(client *postgres.Client) repositories.RetrievalAuditRepository {
	return &RetrievalAuditAdapter{client: client}
}

// Create appends one audit record
func (a *RetrievalAuditAdapter) Create(ctx context.Context, record *entities.RetrievalAuditRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	plan, err := json.Marshal(record.Plan)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal retrieval plan", err)
	}
	candidates, err := json.Marshal(record.Candidates)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal candidates", err)
	}
	used, err := json.Marshal(record.UsedChunks)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal used chunks", err)
	}
	missed, err := json.Marshal(record.MissedChunks)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal missed chunks", err)
	}

	query := `
		INSERT INTO retrieval_audit
		(id, input_id, recommendation_id, plan, candidates, used_chunks, missed_chunks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = a.client.DB().ExecContext(ctx, query,
		record.ID,
		record.InputID,
		record.RecommendationID,
		plan,
		candidates,
		used,
		missed,
		record.CreatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to create retrieval audit record", err)
	}

	return nil
}
