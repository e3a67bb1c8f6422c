package evaluation

// RecallAtK computes the fraction of relevant chunk ids found in the
// top-K retrieved ids. Returns 0.0 if relevant is empty.
func RecallAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0.0
	}

	relevantSet := idSet(relevant)

	found := 0
	for _, id := range topK(retrieved, k) {
		if _, ok := relevantSet[id]; ok {
			found++
		}
	}

	return float64(found) / float64(len(relevant))
}

// MRRAtK computes the reciprocal rank of the first relevant chunk id in
// the top-K retrieved ids. Returns 0.0 if none is found.
func MRRAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 || len(retrieved) == 0 {
		return 0.0
	}

	relevantSet := idSet(relevant)

	for i, id := range topK(retrieved, k) {
		if _, ok := relevantSet[id]; ok {
			return 1.0 / float64(i+1)
		}
	}

	return 0.0
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func topK(ids []string, k int) []string {
	if k < len(ids) {
		return ids[:k]
	}
	return ids
}
