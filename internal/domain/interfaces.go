package domain

import "context"

// Embedder converts free text into a fixed-dimension numeric vector.
// Implementations may require a one-time preparation phase (loading model
// state or fitting on the corpus); after Prepare returns, Embed and
// EmbedBatch are safe for concurrent use.
//
// The same Embedder instance must serve both index builds and queries;
// two independently configured instances silently corrupt similarity
// semantics, so the instance is injected as an explicit dependency.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
	// EmbedBatch embeds every text, preserving input ordering.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorIndex stores course embeddings with metadata and serves filtered
// cosine-similarity search. Rebuild is exclusive and publishes a new
// generation atomically; Search is safe for concurrent use and binds to one
// generation for the duration of a call.
type VectorIndex interface {
	Rebuild(ctx context.Context, entries []CorpusEntry) (*Generation, error)
	// Search returns ranked matches for the query vector. The boolean
	// reports filter exhaustion: the filter eliminated every candidate.
	Search(vector []float64, filter *Filter, topK int) ([]Match, bool, error)
	Generation() *Generation
}

// Recommender is the single contract the presentation layer consumes.
type Recommender interface {
	Recommend(ctx context.Context, req QueryRequest) (QueryResult, error)
}
