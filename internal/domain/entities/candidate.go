package entities

// Modality identifies which retrieval index produced a candidate.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
)

// Candidate is a retrieved knowledge passage with its similarity score
// and source attribution. Candidates are immutable once returned from
// search.
type Candidate struct {
	ID         string   `json:"id"`
	Similarity float64  `json:"similarity"`
	SourceID   string   `json:"source_id"`
	Modality   Modality `json:"modality"`
	Content    string   `json:"content"`
}

// ContextBundle is the deduplicated, token-bounded set of candidates
// handed to generation. It is built once per diagnosis request and
// read-only afterwards.
type ContextBundle struct {
	Chunks      []Candidate `json:"chunks"`
	TotalChunks int         `json:"total_chunks"`
	TotalTokens int         `json:"total_tokens"`
}

// ChunkIDs returns the ids of the chunks in the bundle, in order.
func (b *ContextBundle) ChunkIDs() []string {
	ids := make([]string, len(b.Chunks))
	for i, c := range b.Chunks {
		ids[i] = c.ID
	}
	return ids
}
