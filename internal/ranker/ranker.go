// Package ranker orders scored chunks and folds the best of them into a
// single 0-100 match score.
package ranker

import (
	"math"
	"sort"

	"github.com/seanblong/resumematch/pkg/models"
)

const DefaultTopK = 5

// Rank returns the top k chunks by descending similarity, ties broken by
// ascending chunk ID, and their rank-weighted score. Rank r of K carries
// weight K-r, so the best chunk counts most. The input slice is not modified.
func Rank(scored []models.ScoredChunk, k int) ([]models.ScoredChunk, int) {
	if k < 1 {
		k = DefaultTopK
	}
	ordered := make([]models.ScoredChunk, len(scored))
	copy(ordered, scored)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Similarity != ordered[j].Similarity {
			return ordered[i].Similarity > ordered[j].Similarity
		}
		return ordered[i].ID < ordered[j].ID
	})

	if len(ordered) > k {
		ordered = ordered[:k]
	}
	return ordered, Aggregate(ordered)
}

// Aggregate weights already ranked similarities by K-r and rounds the mean,
// scaled to 100, half up. An empty list scores 0.
func Aggregate(top []models.ScoredChunk) int {
	if len(top) == 0 {
		return 0
	}
	n := len(top)
	var sum, weights float64
	for r, c := range top {
		w := float64(n - r)
		sum += w * clamp01(c.Similarity)
		weights += w
	}
	score := int(math.Floor(100*sum/weights + 0.5))
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
