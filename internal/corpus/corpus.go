// Package corpus builds and holds the frozen TF-IDF representation of the
// catalog. A Corpus is immutable after Build; dataset replacement builds a new
// Corpus and swaps it in wholesale.
package corpus

import (
	"errors"
	"strconv"
	"strings"

	"github.com/velestore/podbor/internal/catalog"
)

// ErrEmptyCorpus means no catalog rows survived price parsing. It is fatal to
// a corpus build; no partial corpus is ever exposed.
var ErrEmptyCorpus = errors.New("corpus: no catalog rows survived price parsing")

// Item is one catalog product eligible for ranking. Price is always set: rows
// whose price fails to parse never enter the corpus. Identity for
// deduplication downstream is the (Name, Link) pair.
type Item struct {
	Name        string
	Category    string
	Description string
	Price       float64
	Link        string
}

// Corpus is the vectorized catalog. Row i of the term-weight matrix
// corresponds to Items[i] for all i.
type Corpus struct {
	items      []Item
	rows       []Vector
	vectorizer *vectorizer
}

// Build constructs a Corpus from raw catalog rows. Rows whose price does not
// parse are excluded entirely, from price filtering and from ranking alike.
// Returns ErrEmptyCorpus when nothing survives.
func Build(rows []catalog.Row) (*Corpus, error) {
	items := make([]Item, 0, len(rows))
	texts := make([]string, 0, len(rows))
	for _, r := range rows {
		price, ok := parsePrice(r.Price)
		if !ok {
			// Expected data cleaning, not an error.
			continue
		}
		items = append(items, Item{
			Name:        r.Name,
			Category:    r.Category,
			Description: r.Description,
			Price:       price,
			Link:        r.Link,
		})
		texts = append(texts, searchableText(r))
	}
	if len(items) == 0 {
		return nil, ErrEmptyCorpus
	}

	v := newVectorizer(russianStopwords())
	v.fit(texts)
	matrix := make([]Vector, len(texts))
	for i, text := range texts {
		matrix[i] = v.transform(text)
	}
	return &Corpus{items: items, rows: matrix, vectorizer: v}, nil
}

// Vectorize transforms arbitrary text into a query vector over the frozen
// vocabulary. It never fails: empty or fully out-of-vocabulary text yields
// the zero vector.
func (c *Corpus) Vectorize(text string) Vector {
	return c.vectorizer.transform(text)
}

// Len returns the number of items in the corpus.
func (c *Corpus) Len() int { return len(c.items) }

// Item returns the catalog item at row i.
func (c *Corpus) Item(i int) Item { return c.items[i] }

// Row returns the term-weight vector for row i.
func (c *Corpus) Row(i int) Vector { return c.rows[i] }

// VocabularySize returns the number of terms in the fitted vocabulary.
func (c *Corpus) VocabularySize() int { return len(c.vectorizer.vocabulary) }

// parsePrice parses a raw price field: surrounding whitespace is stripped and
// a comma decimal separator is accepted. ok is false when the value is not a
// number, which drops the row from the corpus.
func parsePrice(s string) (price float64, ok bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// searchableText joins name, description and category with single spaces.
// Empty fields leave consecutive separators, which the tokenizer ignores.
func searchableText(r catalog.Row) string {
	return r.Name + " " + r.Description + " " + r.Category
}
