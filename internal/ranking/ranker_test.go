package ranking

import (
	"math"
	"testing"

	"github.com/velestore/podbor/internal/catalog"
	"github.com/velestore/podbor/internal/corpus"
)

func buildCorpus(t *testing.T, texts ...string) *corpus.Corpus {
	t.Helper()
	rows := make([]catalog.Row, len(texts))
	for i, text := range texts {
		rows[i] = catalog.Row{Name: text, Price: "100", Link: "https://example.com"}
	}
	c, err := corpus.Build(rows)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b corpus.Vector
		want float64
	}{
		{"identical unit vectors", corpus.Vector{0: 1}, corpus.Vector{0: 1}, 1},
		{"disjoint terms", corpus.Vector{0: 1}, corpus.Vector{1: 1}, 0},
		{"zero vector", corpus.Vector{}, corpus.Vector{0: 1}, 0},
		{"both zero", corpus.Vector{}, corpus.Vector{}, 0},
		{"partial overlap", corpus.Vector{0: 0.6, 1: 0.8}, corpus.Vector{1: 1}, 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
			if got != Cosine(tt.b, tt.a) {
				t.Error("Cosine is not symmetric")
			}
		})
	}
}

func TestCosine_ClampsAboveOne(t *testing.T) {
	// Slightly over-unit vectors from accumulated rounding must not push the
	// score past 1.
	a := corpus.Vector{0: 1.0000000001}
	if got := Cosine(a, a); got > 1 {
		t.Errorf("Cosine() = %v, want at most 1", got)
	}
}

func TestScore_ParallelToCandidates(t *testing.T) {
	c := buildCorpus(t, "шапка зима", "диван бархат", "шапка лето")
	query := c.Vectorize("шапка")

	candidates := []int{2, 0, 1}
	scores := Score(query, c, candidates)
	if len(scores) != len(candidates) {
		t.Fatalf("length: got %d, want %d", len(scores), len(candidates))
	}
	if scores[2] != 0 {
		t.Errorf("no-overlap candidate: got %v, want 0", scores[2])
	}
	if scores[0] <= 0 || scores[1] <= 0 {
		t.Errorf("matching candidates should score positive: %v", scores)
	}
}

func TestScore_ZeroQueryVector(t *testing.T) {
	c := buildCorpus(t, "шапка зима", "диван бархат")
	scores := Score(c.Vectorize(""), c, []int{0, 1})
	for i, s := range scores {
		if s != 0 {
			t.Errorf("score[%d] = %v, want 0", i, s)
		}
		if math.IsNaN(s) {
			t.Errorf("score[%d] is NaN", i)
		}
	}
}

func TestTopK(t *testing.T) {
	candidates := []int{0, 1, 2, 3}
	scores := []float64{0.1, 0.9, 0.5, 0.9}

	top := TopK(candidates, scores, 3)
	if len(top) != 3 {
		t.Fatalf("length: got %d", len(top))
	}
	// Tie between indices 1 and 3 at 0.9 is broken by ascending index.
	want := []ScoredCandidate{{1, 0.9}, {3, 0.9}, {2, 0.5}}
	for i, w := range want {
		if top[i] != w {
			t.Errorf("top[%d] = %+v, want %+v", i, top[i], w)
		}
	}
}

func TestTopK_FewerThanK(t *testing.T) {
	top := TopK([]int{5, 7}, []float64{0.2, 0.4}, 10)
	if len(top) != 2 {
		t.Fatalf("length: got %d", len(top))
	}
	if top[0].Index != 7 || top[1].Index != 5 {
		t.Errorf("order: got %+v", top)
	}
}

func TestTopK_Empty(t *testing.T) {
	if top := TopK(nil, nil, 3); len(top) != 0 {
		t.Errorf("got %+v", top)
	}
}
