package entities

import "time"

// KnowledgeChunk is a corpus passage as stored in the search index.
// Chunks are written by the ingestion path and come back out of search
// as Candidates.
type KnowledgeChunk struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"source_id"`
	Modality  Modality  `json:"modality"`
	Topics    []string  `json:"topics,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
