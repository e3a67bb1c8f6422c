package entities

import "time"

// RetrievalPlan describes what retrieval set out to find for a request.
type RetrievalPlan struct {
	Query  string   `json:"query"`
	Topics []string `json:"topics,omitempty"`
}

// AuditedChunk is one retrieved candidate as recorded in the audit trail,
// flagged with whether it survived assembly and whether the final
// recommendation cited it.
type AuditedChunk struct {
	ID         string   `json:"id"`
	SourceID   string   `json:"source_id"`
	Modality   Modality `json:"modality"`
	Similarity float64  `json:"similarity"`
	Assembled  bool     `json:"assembled"`
	Cited      bool     `json:"cited"`
}

// RetrievalAuditRecord is an immutable snapshot of retrieval quality for
// one completed diagnosis. MissedChunks are candidates that looked
// plausibly relevant (similarity above the missed threshold) yet were
// never cited; they feed offline retrieval tuning, not any runtime check.
type RetrievalAuditRecord struct {
	ID               string         `json:"id" db:"id"`
	InputID          string         `json:"input_id" db:"input_id"`
	RecommendationID string         `json:"recommendation_id" db:"recommendation_id"`
	Plan             RetrievalPlan  `json:"plan" db:"plan"`
	Candidates       []AuditedChunk `json:"candidates" db:"candidates"`
	UsedChunks       []AuditedChunk `json:"used_chunks" db:"used_chunks"`
	MissedChunks     []AuditedChunk `json:"missed_chunks" db:"missed_chunks"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}
