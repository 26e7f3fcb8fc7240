// Package qdrant implements the vector index against a remote Qdrant
// instance over its REST API. It suits deployments where the corpus should
// outlive the process; for single-process setups the local index with the
// SQLite store is the default.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"courserec/internal/domain"
	"courserec/internal/index"
	"courserec/internal/logging"
)

// upsertBatch bounds points per upsert request.
const upsertBatch = 500

// Index is a Qdrant-backed vector index. The configured collection name is
// a Qdrant alias: Rebuild fills a fresh collection and repoints the alias
// only once every upsert succeeded, so the served data is replaced in full
// or not at all. Qdrant itself persists the vectors, so a restart needs no
// re-embedding.
type Index struct {
	embedder domain.Embedder
	url      string
	apiKey   string
	coll     string
	client   *http.Client
	log      *zap.SugaredLogger

	buildMu sync.Mutex
	current atomic.Pointer[domain.Generation]
}

// Config contains connection details for a Qdrant vector index.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// New creates a Qdrant index bound to the shared embedder.
func New(embedder domain.Embedder, cfg Config, log *zap.SugaredLogger) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Index{
		embedder: embedder,
		url:      cfg.URL,
		apiKey:   cfg.APIKey,
		coll:     cfg.Collection,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

// Rebuild embeds the entries into a new collection and atomically repoints
// the alias to it. Any failure before the alias flip, embedder or storage,
// leaves the previously served collection untouched; the staging collection
// is cleaned up best-effort.
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
	dim := len(vecs[0])
	for i := range vecs {
		if len(vecs[i]) != dim || dim == 0 {
			return nil, fmt.Errorf("inconsistent embedding dimension for %s", kept[i].Code)
		}
	}

	prev, err := x.aliasTarget(ctx)
	if err != nil {
		return nil, err
	}
	genID := uuid.NewString()
	staging := x.coll + "-" + genID
	if err := x.createCollection(ctx, staging, dim); err != nil {
		return nil, err
	}
	for start := 0; start < len(kept); start += upsertBatch {
		end := start + upsertBatch
		if end > len(kept) {
			end = len(kept)
		}
		if err := x.upsert(ctx, staging, kept[start:end], vecs[start:end]); err != nil {
			x.dropStaging(ctx, staging)
			return nil, err
		}
	}
	if err := x.swapAlias(ctx, staging, prev != ""); err != nil {
		x.dropStaging(ctx, staging)
		return nil, err
	}
	if prev != "" {
		if err := x.deleteCollection(ctx, prev); err != nil {
			x.log.Warnw("dropping previous collection failed", "collection", prev, "error", err)
		}
	}

	gen := &domain.Generation{
		ID:        genID,
		CreatedAt: time.Now().UTC(),
		Embedder:  x.embedder.Name(),
		Dimension: dim,
	}
	x.current.Store(gen)
	x.log.Infow("qdrant collection rebuilt",
		"alias", x.coll, "collection", staging, "courses", len(kept), "dimension", dim)
	return gen, nil
}

func (x *Index) dropStaging(ctx context.Context, name string) {
	if err := x.deleteCollection(ctx, name); err != nil {
		x.log.Warnw("cleaning up staging collection failed", "collection", name, "error", err)
	}
}

// Attach binds to an existing collection without rebuilding it, picking up
// the stored vector dimension. It also scrolls the stored rag_text payloads
// and prepares the embedder from them, so corpus-fitted embedders serve
// queries without any local persistence. It fails when the collection is
// absent.
func (x *Index) Attach(ctx context.Context) error {
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := x.getJSON(ctx, fmt.Sprintf("%s/collections/%s", x.url, x.coll), &info); err != nil {
		return fmt.Errorf("attaching to collection %s: %w", x.coll, err)
	}
	if info.Result.Config.Params.Vectors.Size == 0 {
		return fmt.Errorf("collection %s has no vector configuration", x.coll)
	}
	texts, err := x.scrollTexts(ctx)
	if err != nil {
		return fmt.Errorf("recovering corpus text from collection %s: %w", x.coll, err)
	}
	if err := x.embedder.Prepare(texts); err != nil {
		return fmt.Errorf("preparing embedder from stored corpus: %w", err)
	}
	x.current.Store(&domain.Generation{
		ID:        x.coll,
		CreatedAt: time.Now().UTC(),
		Embedder:  x.embedder.Name(),
		Dimension: info.Result.Config.Params.Vectors.Size,
	})
	return nil
}

// scrollTexts pages through the collection and collects every stored
// rag_text payload.
func (x *Index) scrollTexts(ctx context.Context) ([]string, error) {
	var texts []string
	var offset any
	for {
		req := map[string]any{
			"limit":        upsertBatch,
			"with_payload": []string{"rag_text"},
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					Payload struct {
						RAGText string `json:"rag_text"`
					} `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := x.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/scroll", x.url, x.coll), req, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			texts = append(texts, p.Payload.RAGText)
		}
		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}
	return texts, nil
}

// aliasTarget resolves the configured alias to the physical collection it
// currently points at, or "" when the alias does not exist yet.
func (x *Index) aliasTarget(ctx context.Context) (string, error) {
	var resp struct {
		Result struct {
			Aliases []struct {
				AliasName      string `json:"alias_name"`
				CollectionName string `json:"collection_name"`
			} `json:"aliases"`
		} `json:"result"`
	}
	if err := x.getJSON(ctx, x.url+"/aliases", &resp); err != nil {
		return "", fmt.Errorf("listing aliases: %w", err)
	}
	for _, a := range resp.Result.Aliases {
		if a.AliasName == x.coll {
			return a.CollectionName, nil
		}
	}
	return "", nil
}

// swapAlias repoints the alias at target in one atomic alias operation.
func (x *Index) swapAlias(ctx context.Context, target string, dropExisting bool) error {
	var actions []map[string]any
	if dropExisting {
		actions = append(actions, map[string]any{
			"delete_alias": map[string]any{"alias_name": x.coll},
		})
	}
	actions = append(actions, map[string]any{
		"create_alias": map[string]any{"collection_name": target, "alias_name": x.coll},
	})
	if err := x.postJSON(ctx, x.url+"/collections/aliases", map[string]any{"actions": actions}, nil); err != nil {
		return fmt.Errorf("repointing alias %s: %w", x.coll, err)
	}
	return nil
}

// Generation returns a descriptor of the attached collection, or nil.
// Vectors are not materialized locally; Qdrant owns them.
func (x *Index) Generation() *domain.Generation {
	return x.current.Load()
}

// Search runs a filtered similarity search. Filter constraints translate to
// payload must-clauses; multi-valued fields use match-any semantics.
func (x *Index) Search(vector []float64, filter *domain.Filter, topK int) ([]domain.Match, bool, error) {
	gen := x.current.Load()
	if gen == nil {
		return nil, false, index.ErrNotReady
	}
	if len(vector) != gen.Dimension {
		return nil, false, fmt.Errorf("%w: query %d, index %d", index.ErrDimensionMismatch, len(vector), gen.Dimension)
	}
	if topK <= 0 {
		topK = index.DefaultTopK
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if q := filterClauses(filter); q != nil {
		req["filter"] = map[string]any{"must": q}
	}
	var resp struct {
		Result []struct {
			Score   float64         `json:"score"`
			Payload json.RawMessage `json:"payload"`
		} `json:"result"`
	}
	ctx, cancel := context.WithTimeout(context.Background(), x.client.Timeout)
	defer cancel()
	if err := x.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", x.url, x.coll), req, &resp); err != nil {
		return nil, false, err
	}

	matches := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		var payload struct {
			Code     string          `json:"code"`
			Metadata domain.Metadata `json:"metadata"`
		}
		if err := json.Unmarshal(r.Payload, &payload); err != nil {
			return nil, false, fmt.Errorf("decoding search payload: %w", err)
		}
		matches = append(matches, domain.Match{Code: payload.Code, Score: r.Score, Metadata: payload.Metadata})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Code < matches[j].Code
	})

	if len(matches) == 0 && !filter.IsZero() {
		total, err := x.count(ctx)
		if err != nil {
			return nil, false, err
		}
		return nil, total > 0, nil
	}
	return matches, false, nil
}

func filterClauses(f *domain.Filter) []map[string]any {
	if f.IsZero() {
		return nil
	}
	var must []map[string]any
	if f.Semester != "" {
		must = append(must, map[string]any{"key": "metadata.semester", "match": map[string]any{"value": string(f.Semester)}})
	}
	if f.Language != "" {
		must = append(must, map[string]any{"key": "metadata.languages", "match": map[string]any{"any": []string{string(f.Language)}}})
	}
	if f.Level != "" {
		must = append(must, map[string]any{"key": "metadata.levels", "match": map[string]any{"any": []string{string(f.Level)}}})
	}
	if f.Location != "" {
		must = append(must, map[string]any{"key": "metadata.location", "match": map[string]any{"value": f.Location}})
	}
	if f.LocalOnly {
		must = append(must, map[string]any{"key": "metadata.local_offering", "match": map[string]any{"value": true}})
	}
	return must
}

func (x *Index) upsert(ctx context.Context, coll string, entries []domain.CorpusEntry, vecs [][]float64) error {
	points := make([]map[string]any, len(entries))
	for i := range entries {
		points[i] = map[string]any{
			"id":     uuid.NewSHA1(uuid.NameSpaceOID, []byte(entries[i].Code)).String(),
			"vector": vecs[i],
			"payload": map[string]any{
				"code":     entries[i].Code,
				"metadata": entries[i].Metadata,
				"rag_text": entries[i].RAGText,
			},
		}
	}
	body := map[string]any{"points": points}
	return x.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", x.url, coll), body)
}

func (x *Index) createCollection(ctx context.Context, coll string, dim int) error {
	if dim <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	return x.putJSON(ctx, fmt.Sprintf("%s/collections/%s", x.url, coll), body)
}

func (x *Index) deleteCollection(ctx context.Context, coll string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", x.url, coll), nil)
	if err != nil {
		return err
	}
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	// 404 just means there was nothing to drop.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("qdrant DELETE collection failed: %s", resp.Status)
	}
	return nil
}

func (x *Index) count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := x.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/count", x.url, x.coll), map[string]any{"exact": false}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (x *Index) putJSON(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (x *Index) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (x *Index) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant GET %s failed: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
