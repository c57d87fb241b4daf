package services

import (
	"sort"
	"strings"

	"github.com/matchahq/matcha-backend/internal/types"
)

const (
	maxBiases   = 10
	maxInsights = 20
	// insightPrefixLen is the window of the crude near-duplicate check.
	insightPrefixLen = 20
)

// mergeBiases folds a new batch into the accumulated list: same name keeps
// the higher-confidence version, new names append. The result is sorted
// descending by confidence and truncated to the top 10. Confidence ties
// keep insertion order (accepted ambiguity). Re-merging the same batch is
// a no-op.
func mergeBiases(existing, incoming []types.CognitiveBias) []types.CognitiveBias {
	merged := make([]types.CognitiveBias, len(existing))
	copy(merged, existing)

	for _, item := range incoming {
		idx := -1
		for i, e := range merged {
			if e.Name == item.Name {
				idx = i
				break
			}
		}
		if idx >= 0 {
			if item.Confidence > merged[idx].Confidence {
				merged[idx] = item
			}
		} else {
			merged = append(merged, item)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Confidence > merged[j].Confidence
	})
	if len(merged) > maxBiases {
		merged = merged[:maxBiases]
	}
	return merged
}

// mergeInsights appends non-duplicate insights and keeps the last 20, a
// FIFO window rather than the confidence ranking biases get. Duplicate
// means either string contains the other's first 20 characters,
// case-insensitive: a cheap near-duplicate heuristic, not semantic dedup.
func mergeInsights(existing, incoming []string) []string {
	merged := make([]string, len(existing))
	copy(merged, existing)

	for _, insight := range incoming {
		if !containsSimilarInsight(merged, insight) {
			merged = append(merged, insight)
		}
	}

	if len(merged) > maxInsights {
		merged = merged[len(merged)-maxInsights:]
	}
	return merged
}

func containsSimilarInsight(list []string, insight string) bool {
	candidate := strings.ToLower(insight)
	candidatePrefix := prefixOf(candidate)
	for _, e := range list {
		el := strings.ToLower(e)
		if strings.Contains(el, candidatePrefix) || strings.Contains(candidate, prefixOf(el)) {
			return true
		}
	}
	return false
}

func prefixOf(s string) string {
	if len(s) > insightPrefixLen {
		return s[:insightPrefixLen]
	}
	return s
}
