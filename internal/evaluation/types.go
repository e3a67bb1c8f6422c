package evaluation

import (
	"time"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
)

// GoldenCase is a labeled retrieval query with the chunk ids an expert
// marked relevant.
type GoldenCase struct {
	ID               string            `json:"id"`
	Query            string            `json:"query"`
	Modality         entities.Modality `json:"modality"`
	Crop             string            `json:"crop"`
	ExpectedChunkIDs []string          `json:"expected_chunk_ids"`
	Difficulty       string            `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the evaluation outcome for a single case.
type EvalResult struct {
	CaseID      string
	Query       string
	Modality    entities.Modality
	RecallAt10  float64
	MRRAt10     float64
	ResultCount int
	Latency     time.Duration
}

// EvalSummary holds aggregate metrics across all golden cases.
type EvalSummary struct {
	TotalCases    int
	AvgRecallAt10 float64
	AvgMRRAt10    float64
	AvgLatency    time.Duration
	CasesWithHits int // cases that returned at least 1 candidate
	ByModality    map[entities.Modality]*ModalitySummary
}

// ModalitySummary holds metrics grouped by retrieval modality.
type ModalitySummary struct {
	Count         int
	AvgRecallAt10 float64
	AvgMRRAt10    float64
}
