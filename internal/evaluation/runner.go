package evaluation

import (
	"context"
	"time"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/repositories"
)

// Runner runs retrieval evaluation across a set of golden cases.
type Runner struct {
	searchRepo repositories.KnowledgeSearchRepository
	limit      int
}

func NewRunner(searchRepo repositories.KnowledgeSearchRepository) *Runner {
	return &Runner{searchRepo: searchRepo, limit: 10}
}

func (r *Runner) Run(ctx context.Context, cases []GoldenCase) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalCases: len(cases),
		ByModality: make(map[entities.Modality]*ModalitySummary),
	}

	for _, gc := range cases {
		start := time.Now()
		candidates, err := r.searchRepo.Search(ctx, gc.Query, gc.Modality, r.limit)
		duration := time.Since(start)

		if err != nil {
			continue
		}

		retrievedIDs := make([]string, len(candidates))
		for i, c := range candidates {
			retrievedIDs[i] = c.ID
		}

		result := EvalResult{
			CaseID:      gc.ID,
			Query:       gc.Query,
			Modality:    gc.Modality,
			RecallAt10:  RecallAtK(gc.ExpectedChunkIDs, retrievedIDs, r.limit),
			MRRAt10:     MRRAtK(gc.ExpectedChunkIDs, retrievedIDs, r.limit),
			ResultCount: len(candidates),
			Latency:     duration,
		}

		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.AvgRecallAt10 += res.RecallAt10
	s.AvgMRRAt10 += res.MRRAt10
	s.AvgLatency += res.Latency
	if res.ResultCount > 0 {
		s.CasesWithHits++
	}

	if _, ok := s.ByModality[res.Modality]; !ok {
		s.ByModality[res.Modality] = &ModalitySummary{}
	}
	ms := s.ByModality[res.Modality]
	ms.Count++
	ms.AvgRecallAt10 += res.RecallAt10
	ms.AvgMRRAt10 += res.MRRAt10
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	if s.TotalCases > 0 {
		n := float64(s.TotalCases)
		s.AvgRecallAt10 /= n
		s.AvgMRRAt10 /= n
		s.AvgLatency /= time.Duration(s.TotalCases)
	}

	for _, ms := range s.ByModality {
		if ms.Count > 0 {
			n := float64(ms.Count)
			ms.AvgRecallAt10 /= n
			ms.AvgMRRAt10 /= n
		}
	}
}
