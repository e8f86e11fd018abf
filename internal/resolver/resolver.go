// Package resolver applies the result-shaping policy: price-constrained
// candidate selection, similarity ranking, threshold filtering and the
// single-best-match collapse.
package resolver

import (
	"github.com/velestore/podbor/internal/corpus"
	"github.com/velestore/podbor/internal/query"
	"github.com/velestore/podbor/internal/ranking"
)

// Options are the tunable policy constants. They are parameters on purpose:
// the defaults encode the current product policy, not structural invariants.
type Options struct {
	// Threshold is the minimum similarity a candidate needs to be shown.
	// The bound is inclusive: a candidate scoring exactly Threshold stays.
	Threshold float64
	// TopN caps how many candidates survive ranking.
	TopN int
	// CollapseScore is the high-confidence cutoff. Once the best result
	// reaches it, alternatives are assumed to add noise and only the single
	// best match is returned.
	CollapseScore float64
}

// DefaultOptions returns the policy defaults: minimum relevance 0.2, three
// results, collapse at 0.45.
func DefaultOptions() Options {
	return Options{Threshold: 0.2, TopN: 3, CollapseScore: 0.45}
}

// Result is one recommended product.
type Result struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Link        string  `json:"link"`
	Score       float64 `json:"score"`
}

// Resolution is the outcome of resolving one query. NeedsClarification is
// data, not an error, and is true exactly when Results is empty.
type Resolution struct {
	Results            []Result `json:"results"`
	NeedsClarification bool     `json:"needs_clarification"`
}

// Resolve runs the pipeline over the given corpus snapshot: price extraction,
// vectorization of the residual text, candidate selection, cosine ranking,
// threshold filter and confidence collapse. It is deterministic given the
// corpus, text and options, and never fails for well-formed input.
func Resolve(c *corpus.Corpus, text string, opts Options) Resolution {
	limit, hasLimit, residual := query.ExtractPriceLimit(text)

	var candidates []int
	if hasLimit {
		for i := 0; i < c.Len(); i++ {
			if c.Item(i).Price < limit {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) == 0 {
			// Nothing is priced under the limit; ranking is pointless.
			return Resolution{Results: []Result{}, NeedsClarification: true}
		}
	} else {
		candidates = make([]int, c.Len())
		for i := range candidates {
			candidates[i] = i
		}
	}

	vec := c.Vectorize(residual)
	scores := ranking.Score(vec, c, candidates)
	top := ranking.TopK(candidates, scores, opts.TopN)

	results := make([]Result, 0, len(top))
	for _, sc := range top {
		if sc.Score < opts.Threshold {
			continue
		}
		item := c.Item(sc.Index)
		results = append(results, Result{
			Name:        item.Name,
			Category:    item.Category,
			Description: item.Description,
			Price:       item.Price,
			Link:        item.Link,
			Score:       sc.Score,
		})
	}
	if len(results) == 0 {
		return Resolution{Results: results, NeedsClarification: true}
	}
	// TopK put the best score first; on a tie the lowest corpus index wins.
	if results[0].Score >= opts.CollapseScore {
		results = results[:1]
	}
	return Resolution{Results: results, NeedsClarification: false}
}
