// Package ranking scores query vectors against corpus rows and selects the
// top candidates.
package ranking

import (
	"sort"

	"github.com/velestore/podbor/internal/corpus"
)

// ScoredCandidate pairs a corpus row index with its similarity score.
type ScoredCandidate struct {
	Index int
	Score float64
}

// Cosine returns the cosine similarity of two unit-normalized sparse vectors.
// Weights are non-negative, so the result is in [0, 1]; vectors sharing no
// terms score exactly 0, and the zero vector scores 0 against anything.
func Cosine(a, b corpus.Vector) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	var dot float64
	for idx, w := range a {
		dot += w * b[idx]
	}
	if dot > 1 {
		// Rounding can push the dot product of unit vectors past 1.
		dot = 1
	}
	return dot
}

// Score computes the similarity between query and each corpus row named in
// candidates. The returned slice is parallel to candidates, same length and
// order.
func Score(query corpus.Vector, c *corpus.Corpus, candidates []int) []float64 {
	scores := make([]float64, len(candidates))
	for i, idx := range candidates {
		scores[i] = Cosine(query, c.Row(idx))
	}
	return scores
}

// TopK returns the k highest-scoring (index, score) pairs sorted by descending
// score, ties broken by ascending corpus index. When fewer than k candidates
// exist, all are returned. candidates and scores must be parallel.
func TopK(candidates []int, scores []float64, k int) []ScoredCandidate {
	ranked := make([]ScoredCandidate, len(candidates))
	for i, idx := range candidates {
		ranked[i] = ScoredCandidate{Index: idx, Score: scores[i]}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Index < ranked[j].Index
	})
	if k < 0 {
		k = 0
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	return ranked[:k]
}
