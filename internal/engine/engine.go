// Package engine orchestrates query handling: sanitization, embedding,
// filtered vector search and result assembly. It is the sole interface the
// presentation layer consumes.
package engine

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"courserec/internal/domain"
	"courserec/internal/logging"
)

// Options bound and guard incoming queries.
type Options struct {
	// MaxQueryLen is the maximum query length in runes. Longer queries are
	// rejected, never silently truncated.
	MaxQueryLen int
	// Denylist holds lowercase phrases that reject a query outright. This
	// guards any downstream language-generation step against instruction
	// override; it applies even though no such step exists yet, because it
	// is a boundary contract of the engine.
	Denylist []string
	// DefaultTopK applies when a request leaves TopK unset.
	DefaultTopK int
	// MaxTopK caps the requested result count.
	MaxTopK int
}

// Engine answers free-text course queries against the shared embedder and
// the published index generation. It never mutates the index; concurrent
// Recommend calls are safe.
type Engine struct {
	embedder domain.Embedder
	index    domain.VectorIndex
	opts     Options
	denylist []string
	log      *zap.SugaredLogger
}

// New creates an Engine. The embedder must be the same instance the index
// was built with.
func New(embedder domain.Embedder, index domain.VectorIndex, opts Options, log *zap.SugaredLogger) *Engine {
	if opts.MaxQueryLen <= 0 {
		opts.MaxQueryLen = 1000
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = 20
	}
	denylist := make([]string, 0, len(opts.Denylist))
	for _, phrase := range opts.Denylist {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" {
			denylist = append(denylist, phrase)
		}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{embedder: embedder, index: index, opts: opts, denylist: denylist, log: log}
}

// Recommend sanitizes the request, embeds it and returns ranked courses.
// Sanitization failures come back as *QueryRejectedError; an empty result
// caused by the metadata filter is reported via FiltersExhausted rather
// than an ambiguous empty list.
func (e *Engine) Recommend(ctx context.Context, req domain.QueryRequest) (domain.QueryResult, error) {
	text, err := e.sanitize(req)
	if err != nil {
		e.log.Warnw("query rejected", "error", err)
		return domain.QueryResult{}, err
	}

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("embedding query: %w", err)
	}

	topK := req.TopK
	if topK == 0 {
		topK = e.opts.DefaultTopK
	}
	matches, exhausted, err := e.index.Search(vec, req.Filter, topK)
	if err != nil {
		return domain.QueryResult{}, err
	}
	return domain.QueryResult{Matches: matches, FiltersExhausted: exhausted}, nil
}

func (e *Engine) sanitize(req domain.QueryRequest) (string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", &QueryRejectedError{Reason: ReasonEmpty, Detail: "query text is empty"}
	}
	if n := utf8.RuneCountInString(text); n > e.opts.MaxQueryLen {
		return "", &QueryRejectedError{
			Reason: ReasonTooLong,
			Detail: fmt.Sprintf("query is %d characters, limit is %d", n, e.opts.MaxQueryLen),
		}
	}
	lower := strings.ToLower(text)
	for _, phrase := range e.denylist {
		if strings.Contains(lower, phrase) {
			return "", &QueryRejectedError{
				Reason: ReasonDenied,
				Detail: fmt.Sprintf("query contains denylisted phrase %q", phrase),
			}
		}
	}
	if req.TopK < 0 || req.TopK > e.opts.MaxTopK {
		return "", &QueryRejectedError{
			Reason: ReasonBadTopK,
			Detail: fmt.Sprintf("top_k %d outside 1..%d", req.TopK, e.opts.MaxTopK),
		}
	}
	return text, nil
}
