package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"courserec/internal/domain"
	"courserec/internal/logging"
)

// DefaultTopK is used when a search does not bound the result count.
const DefaultTopK = 5

// Store persists index generations. Save must replace the previous
// generation atomically; Load returns the current one or ErrNoGeneration.
type Store interface {
	Save(ctx context.Context, gen *domain.Generation) error
	Load(ctx context.Context) (*domain.Generation, error)
}

// Index is an exact-search vector index over course embeddings. It holds at
// most one published generation at a time; Rebuild produces and publishes a
// new one, Search reads whichever generation is current. Searches take a
// snapshot pointer, so an in-flight search never observes a half-swapped
// index.
//
// Exact brute-force cosine search is deliberate: the corpus is a few
// thousand courses, where exactness is cheap and recall guarantees are
// trivial.
type Index struct {
	embedder domain.Embedder
	store    Store
	log      *zap.SugaredLogger

	buildMu sync.Mutex
	current atomic.Pointer[domain.Generation]
}

// New creates an Index bound to the shared embedder. store may be nil for a
// memory-only index.
func New(embedder domain.Embedder, store Store, log *zap.SugaredLogger) *Index {
	if log == nil {
		log = logging.Nop()
	}
	return &Index{embedder: embedder, store: store, log: log}
}

// Rebuild embeds every corpus entry and publishes a new generation. It is
// exclusive: concurrent rebuilds serialize. Any systemic failure (embedder,
// storage) aborts the rebuild and leaves the previous generation intact.
// Entries without a course code are excluded, never merged.
//
// Rebuild refits corpus-derived embedders, which shifts the query vector
// space as well. A process must therefore not serve queries while rebuilding
// over a changed corpus; the shipped binaries keep the two apart, with the
// serving process adopting persisted generations via Publish only.
func (x *Index) Rebuild(ctx context.Context, entries []domain.CorpusEntry) (*domain.Generation, error) {
	x.buildMu.Lock()
	defer x.buildMu.Unlock()

	kept := make([]domain.CorpusEntry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Code == "" {
			x.log.Warnw("entry without course code excluded from index")
			continue
		}
		if _, dup := seen[e.Code]; dup {
			x.log.Warnw("duplicate course code excluded from index", "code", e.Code)
			continue
		}
		seen[e.Code] = struct{}{}
		kept = append(kept, e)
	}

	if len(kept) == 0 {
		return nil, fmt.Errorf("no indexable corpus entries")
	}

	texts := make([]string, len(kept))
	for i := range kept {
		texts[i] = kept[i].RAGText
	}
	if err := x.embedder.Prepare(texts); err != nil {
		return nil, fmt.Errorf("preparing embedder: %w", err)
	}
	vecs, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding corpus: %w", err)
	}
	if len(vecs) != len(kept) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d entries", len(vecs), len(kept))
	}

	dim := 0
	vectors := make([]domain.IndexedVector, len(kept))
	for i := range kept {
		if dim == 0 {
			dim = len(vecs[i])
		}
		if len(vecs[i]) != dim || dim == 0 {
			return nil, fmt.Errorf("inconsistent embedding dimension for %s: %d vs %d", kept[i].Code, len(vecs[i]), dim)
		}
		vectors[i] = domain.IndexedVector{
			Code:      kept[i].Code,
			Embedding: vecs[i],
			Metadata:  kept[i].Metadata,
			RAGText:   kept[i].RAGText,
		}
	}
	sort.Slice(vectors, func(i, j int) bool { return vectors[i].Code < vectors[j].Code })

	gen := &domain.Generation{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Embedder:  x.embedder.Name(),
		Dimension: dim,
		Vectors:   vectors,
	}
	if x.store != nil {
		if err := x.store.Save(ctx, gen); err != nil {
			return nil, fmt.Errorf("persisting generation: %w", err)
		}
	}
	x.current.Store(gen)
	x.log.Infow("index generation published",
		"generation", gen.ID, "courses", len(vectors), "dimension", dim, "embedder", gen.Embedder)
	return gen, nil
}

// Publish adopts an already-built generation, typically one loaded from the
// store at startup. It rejects a generation built by a different embedder
// configuration.
func (x *Index) Publish(gen *domain.Generation) error {
	if gen == nil {
		return fmt.Errorf("cannot publish nil generation")
	}
	if gen.Embedder != x.embedder.Name() {
		return fmt.Errorf("generation built with embedder %q, configured embedder is %q", gen.Embedder, x.embedder.Name())
	}
	x.current.Store(gen)
	return nil
}

// Generation returns the currently published generation, or nil.
func (x *Index) Generation() *domain.Generation {
	return x.current.Load()
}

// Search ranks eligible courses by cosine similarity against the query
// vector. The filter is a hard pre-filter: only courses satisfying every
// constraint are scored. The boolean return is true when the filter
// eliminated every candidate, which callers must report distinctly from a
// low-similarity empty result. Equal scores order by ascending course code
// so output is reproducible.
func (x *Index) Search(vector []float64, filter *domain.Filter, topK int) ([]domain.Match, bool, error) {
	gen := x.current.Load()
	if gen == nil {
		return nil, false, ErrNotReady
	}
	if len(vector) != gen.Dimension {
		return nil, false, fmt.Errorf("%w: query %d, index %d", ErrDimensionMismatch, len(vector), gen.Dimension)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	eligible := make([]int, 0, len(gen.Vectors))
	for i := range gen.Vectors {
		if filter.Matches(gen.Vectors[i].Metadata) {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		exhausted := !filter.IsZero() && len(gen.Vectors) > 0
		return nil, exhausted, nil
	}

	matches := make([]domain.Match, len(eligible))
	for n, i := range eligible {
		v := &gen.Vectors[i]
		matches[n] = domain.Match{
			Code:     v.Code,
			Score:    cosine(vector, v.Embedding),
			Metadata: v.Metadata,
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Code < matches[j].Code
	})
	if topK > len(matches) {
		topK = len(matches)
	}
	return matches[:topK], false, nil
}
