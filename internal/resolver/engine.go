package resolver

import (
	"sync"

	"github.com/velestore/podbor/internal/catalog"
	"github.com/velestore/podbor/internal/corpus"
)

// Engine holds the current corpus snapshot and resolves queries against it.
// Dataset replacement is copy-and-swap: the replacement corpus is built first
// and only swapped in on success, so resolutions in flight keep the snapshot
// they started with and readers never see a half-built corpus.
type Engine struct {
	mu          sync.RWMutex
	corpus      *corpus.Corpus
	catalogPath string
	opts        Options
}

// NewEngine creates an engine serving the given corpus. catalogPath is where
// the dataset file lives; ReloadFromFile re-reads it.
func NewEngine(c *corpus.Corpus, catalogPath string, opts Options) *Engine {
	return &Engine{corpus: c, catalogPath: catalogPath, opts: opts}
}

// Resolve resolves text against the current snapshot.
func (e *Engine) Resolve(text string) Resolution {
	return Resolve(e.Snapshot(), text, e.opts)
}

// Snapshot returns the current corpus. The corpus is immutable; callers may
// keep using it across a concurrent reload.
func (e *Engine) Snapshot() *corpus.Corpus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.corpus
}

// Options returns the policy options the engine resolves with.
func (e *Engine) Options() Options { return e.opts }

// CatalogPath returns the dataset file path.
func (e *Engine) CatalogPath() string { return e.catalogPath }

// Reload builds a corpus from rows and swaps it in. On a build error the
// previous snapshot keeps serving.
func (e *Engine) Reload(rows []catalog.Row) error {
	c, err := corpus.Build(rows)
	if err != nil {
		return err
	}
	e.Swap(c)
	return nil
}

// ReloadFromFile re-reads the dataset file and swaps in the rebuilt corpus.
func (e *Engine) ReloadFromFile() error {
	rows, err := catalog.LoadFile(e.catalogPath)
	if err != nil {
		return err
	}
	return e.Reload(rows)
}

// Swap replaces the current snapshot with an already built corpus.
func (e *Engine) Swap(c *corpus.Corpus) {
	e.mu.Lock()
	e.corpus = c
	e.mu.Unlock()
}
