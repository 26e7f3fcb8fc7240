package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courserec/internal/domain"
	"courserec/internal/embedding/tfidf"
)

// fakeServer emulates the subset of the Qdrant REST API the index uses:
// collections, aliases, upserts, scroll and count.
type fakeServer struct {
	mu          sync.Mutex
	collections map[string]*fakeCollection
	aliases     map[string]string
	failUpserts bool
}

type fakeCollection struct {
	size   int
	points []map[string]any
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		collections: make(map[string]*fakeCollection),
		aliases:     make(map[string]string),
	}
}

func (f *fakeServer) resolve(name string) (*fakeCollection, bool) {
	if target, ok := f.aliases[name]; ok {
		name = target
	}
	c, ok := f.collections[name]
	return c, ok
}

func writeResult(w http.ResponseWriter, result any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "result": result})
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/aliases":
		aliases := make([]map[string]any, 0, len(f.aliases))
		for alias, coll := range f.aliases {
			aliases = append(aliases, map[string]any{"alias_name": alias, "collection_name": coll})
		}
		writeResult(w, map[string]any{"aliases": aliases})

	case r.Method == http.MethodPost && r.URL.Path == "/collections/aliases":
		var body struct {
			Actions []struct {
				CreateAlias *struct {
					CollectionName string `json:"collection_name"`
					AliasName      string `json:"alias_name"`
				} `json:"create_alias"`
				DeleteAlias *struct {
					AliasName string `json:"alias_name"`
				} `json:"delete_alias"`
			} `json:"actions"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, a := range body.Actions {
			if a.DeleteAlias != nil {
				delete(f.aliases, a.DeleteAlias.AliasName)
			}
			if a.CreateAlias != nil {
				f.aliases[a.CreateAlias.AliasName] = a.CreateAlias.CollectionName
			}
		}
		writeResult(w, true)

	case len(parts) == 2 && parts[0] == "collections":
		name := parts[1]
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.collections[name] = &fakeCollection{size: body.Vectors.Size}
			writeResult(w, true)
		case http.MethodDelete:
			if _, ok := f.collections[name]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(f.collections, name)
			writeResult(w, true)
		case http.MethodGet:
			c, ok := f.resolve(name)
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeResult(w, map[string]any{
				"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": c.size}}},
			})
		}

	case len(parts) == 3 && parts[0] == "collections" && parts[2] == "points" && r.Method == http.MethodPut:
		if f.failUpserts {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		c, ok := f.resolve(parts[1])
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			c.points = append(c.points, p.Payload)
		}
		writeResult(w, true)

	case len(parts) == 4 && parts[0] == "collections" && parts[3] == "scroll":
		c, ok := f.resolve(parts[1])
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		points := make([]map[string]any, len(c.points))
		for i, payload := range c.points {
			points[i] = map[string]any{"payload": payload}
		}
		writeResult(w, map[string]any{"points": points, "next_page_offset": nil})

	case len(parts) == 4 && parts[0] == "collections" && parts[3] == "count":
		c, ok := f.resolve(parts[1])
		n := 0
		if ok {
			n = len(c.points)
		}
		writeResult(w, map[string]any{"count": n})

	case len(parts) == 4 && parts[0] == "collections" && parts[3] == "search":
		writeResult(w, []any{})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func testEntries() []domain.CorpusEntry {
	return []domain.CorpusEntry{
		{
			Code:     "LTAT.02.004",
			RAGText:  "Course code: LTAT.02.004\nDescription (EN): machine learning and data analysis\nDescription (ET): masinõpe ja andmeanalüüs",
			Metadata: domain.Metadata{Semester: domain.SemesterSpring},
		},
		{
			Code:     "FLAJ.01.001",
			RAGText:  "Course code: FLAJ.01.001\nDescription (EN): medieval history of Europe\nDescription (ET): keskaja ajalugu",
			Metadata: domain.Metadata{Semester: domain.SemesterAutumn},
		},
	}
}

func newTestServer(t *testing.T, f *fakeServer) string {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return srv.URL
}

func newTestIndex(t *testing.T, f *fakeServer) (*Index, *tfidf.Embedder) {
	t.Helper()
	url := newTestServer(t, f)
	emb := tfidf.NewEmbedder()
	return New(emb, Config{URL: url, Collection: "courses"}, nil), emb
}

func (f *fakeServer) servedCollection(t *testing.T) (string, *fakeCollection) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.aliases["courses"]
	require.True(t, ok, "alias must exist")
	c, ok := f.collections[target]
	require.True(t, ok, "alias must point at an existing collection")
	return target, c
}

func TestRebuildFlipsAliasAfterAllUpserts(t *testing.T) {
	f := newFakeServer()
	x, _ := newTestIndex(t, f)

	gen, err := x.Rebuild(context.Background(), testEntries())
	require.NoError(t, err)

	target, c := f.servedCollection(t)
	assert.Equal(t, "courses-"+gen.ID, target)
	assert.Len(t, c.points, 2)
	assert.Equal(t, gen.Dimension, c.size)
}

func TestRebuildReplacesPreviousCollection(t *testing.T) {
	f := newFakeServer()
	x, _ := newTestIndex(t, f)
	ctx := context.Background()

	first, err := x.Rebuild(ctx, testEntries())
	require.NoError(t, err)
	second, err := x.Rebuild(ctx, testEntries())
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	target, _ := f.servedCollection(t)
	assert.Equal(t, "courses-"+second.ID, target)
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.collections, 1, "previous collection must be dropped after the flip")
}

func TestRebuildUpsertFailureKeepsServedCollection(t *testing.T) {
	f := newFakeServer()
	x, _ := newTestIndex(t, f)
	ctx := context.Background()

	first, err := x.Rebuild(ctx, testEntries())
	require.NoError(t, err)

	f.mu.Lock()
	f.failUpserts = true
	f.mu.Unlock()
	_, err = x.Rebuild(ctx, testEntries())
	require.Error(t, err)

	target, c := f.servedCollection(t)
	assert.Equal(t, "courses-"+first.ID, target)
	assert.Len(t, c.points, 2)
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.collections, 1, "staging collection must be cleaned up")
}

func TestRebuildEmptyCorpusKeepsServedCollection(t *testing.T) {
	f := newFakeServer()
	x, _ := newTestIndex(t, f)
	ctx := context.Background()

	first, err := x.Rebuild(ctx, testEntries())
	require.NoError(t, err)

	_, err = x.Rebuild(ctx, nil)
	require.Error(t, err)

	target, c := f.servedCollection(t)
	assert.Equal(t, "courses-"+first.ID, target)
	assert.Len(t, c.points, 2)
}

func TestAttachPreparesEmbedderFromStoredTexts(t *testing.T) {
	f := newFakeServer()
	builder, _ := newTestIndex(t, f)
	ctx := context.Background()
	gen, err := builder.Rebuild(ctx, testEntries())
	require.NoError(t, err)

	// A fresh serving process with an unfitted embedder.
	fresh := tfidf.NewEmbedder()
	serving := New(fresh, Config{URL: newTestServer(t, f), Collection: "courses"}, nil)
	require.NoError(t, serving.Attach(ctx))

	assert.Equal(t, gen.Dimension, fresh.Dimension())
	vec, err := fresh.Embed(ctx, "tahan õppida masinõpet")
	require.NoError(t, err)
	assert.Len(t, vec, gen.Dimension)

	got := serving.Generation()
	require.NotNil(t, got)
	assert.Equal(t, gen.Dimension, got.Dimension)
}

func TestAttachFailsWithoutCollection(t *testing.T) {
	f := newFakeServer()
	x, _ := newTestIndex(t, f)
	assert.Error(t, x.Attach(context.Background()))
}
