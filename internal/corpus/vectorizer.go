package corpus

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Vector is a sparse term-weight vector over the fitted vocabulary, keyed by
// term index. The zero vector is the empty (or nil) map.
type Vector map[int]float64

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// vectorizer is a TF-IDF vectorizer. The vocabulary and IDF weights are fixed
// by fit and never updated incrementally; a catalog change rebuilds the whole
// corpus.
type vectorizer struct {
	vocabulary map[string]int
	idf        []float64
	stopwords  map[string]struct{}
}

func newVectorizer(stopwords map[string]struct{}) *vectorizer {
	return &vectorizer{
		vocabulary: make(map[string]int),
		stopwords:  stopwords,
	}
}

// fit builds the vocabulary and IDF weights from the document texts. Terms are
// ordered alphabetically so vocabulary indices are stable across builds of the
// same catalog.
func (v *vectorizer) fit(texts []string) {
	df := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]struct{})
		for _, tok := range v.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	v.vocabulary = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	n := float64(len(texts))
	for i, term := range terms {
		v.vocabulary[term] = i
		// Smoothed IDF, so terms present in every document still get a
		// small positive weight.
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
}

// transform computes the L2-normalized TF-IDF vector for text. Terms outside
// the fitted vocabulary are ignored; text with no in-vocabulary terms yields
// the zero vector.
func (v *vectorizer) transform(text string) Vector {
	counts := make(map[int]int)
	total := 0
	for _, tok := range v.tokenize(text) {
		if idx, ok := v.vocabulary[tok]; ok {
			counts[idx]++
			total++
		}
	}
	vec := make(Vector, len(counts))
	if total == 0 {
		return vec
	}
	var sumSquares float64
	for idx, count := range counts {
		w := float64(count) / float64(total) * v.idf[idx]
		vec[idx] = w
		sumSquares += w * w
	}
	norm := math.Sqrt(sumSquares)
	if norm > 0 {
		for idx := range vec {
			vec[idx] /= norm
		}
	}
	return vec
}

func (v *vectorizer) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if _, stop := v.stopwords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}
