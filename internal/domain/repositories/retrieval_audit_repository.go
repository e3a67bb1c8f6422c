package repositories

import (
	"context"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
)

// RetrievalAuditRepository appends retrieval audit records. Records are
// never read back or mutated by this core.
type RetrievalAuditRepository interface {
	Create(ctx context.Context, record *entities.RetrievalAuditRecord) error
}
