package services

import (
	"sort"

	"github.com/obiora/CropAdvisoryDesign/backend/internal/domain/entities"
)

const (
	defaultRelevanceThreshold = 0.5
	defaultTokenBudget        = 4000
)

// ContextAssemblerService turns raw retrieval candidates into the
// token-bounded context bundle handed to generation. It is pure: no I/O,
// deterministic for a given threshold and budget, and invoked identically
// whether retrieval degraded upstream or not.
type ContextAssemblerService struct {
	relevanceThreshold float64
	tokenBudget        int
}

// NewContextAssemblerService creates an assembler with the given
// low-relevance threshold and token budget; zero values fall back to the
// defaults.
func NewContextAssemblerService(relevanceThreshold float64, tokenBudget int) *ContextAssemblerService {
	if relevanceThreshold <= 0 {
		relevanceThreshold = defaultRelevanceThreshold
	}
	if tokenBudget <= 0 {
		tokenBudget = defaultTokenBudget
	}
	return &ContextAssemblerService{
		relevanceThreshold: relevanceThreshold,
		tokenBudget:        tokenBudget,
	}
}

// Assemble filters, deduplicates, orders, and budget-fits the candidates
// from both modalities into one bundle. Text candidates precede image
// candidates on input, so a chunk id appearing in both keeps its text
// occurrence.
func (s *ContextAssemblerService) Assemble(textCandidates, imageCandidates []entities.Candidate) *entities.ContextBundle {
	merged := make([]entities.Candidate, 0, len(textCandidates)+len(imageCandidates))
	merged = append(merged, textCandidates...)
	merged = append(merged, imageCandidates...)

	// Filter out low-relevance candidates, dropping duplicates by id
	// in input order (first occurrence wins).
	seen := make(map[string]struct{}, len(merged))
	survivors := make([]entities.Candidate, 0, len(merged))
	for _, c := range merged {
		if c.Similarity <= s.relevanceThreshold {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		survivors = append(survivors, c)
	}

	// Order by descending similarity; the sort is stable so candidates
	// with equal similarity keep their pre-sort relative order.
	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].Similarity > survivors[j].Similarity
	})

	// Greedy whole-chunk fit under the token budget. A chunk either fits
	// entirely or ends the accumulation.
	chunks := []entities.Candidate{}
	totalTokens := 0
	for _, c := range survivors {
		cost := EstimateTokens(c.Content)
		if totalTokens+cost > s.tokenBudget {
			break
		}
		chunks = append(chunks, c)
		totalTokens += cost
	}

	return &entities.ContextBundle{
		Chunks:      chunks,
		TotalChunks: len(chunks),
		TotalTokens: totalTokens,
	}
}

// EstimateTokens approximates the token cost of a chunk's content at four
// characters per token, rounded up.
func EstimateTokens(content string) int {
	if content == "" {
		return 0
	}
	return (len(content) + 3) / 4
}
