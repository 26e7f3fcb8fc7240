package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_EMBED_API_KEY", "test-key")
	c, err := NewClient(Config{
		BaseURL:   srv.URL,
		APIKeyEnv: "TEST_EMBED_API_KEY",
		Model:     "test-model",
	})
	require.NoError(t, err)
	return c
}

func embeddingsHandler(vec []float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"index": i, "embedding": vec}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("TEST_EMBED_API_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "TEST_EMBED_API_KEY"})
	assert.Error(t, err)
}

func TestNameCarriesModel(t *testing.T) {
	c := newTestClient(t, embeddingsHandler([]float64{1, 0}))
	assert.Equal(t, "openai/test-model", c.Name())
}

func TestEmbedNormalizesAndPinsDimension(t *testing.T) {
	c := newTestClient(t, embeddingsHandler([]float64{3, 4}))
	assert.Zero(t, c.Dimension())

	vec, err := c.Embed(context.Background(), "masinõpe")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, vec[0], 1e-12)
	assert.InDelta(t, 0.8, vec[1], 1e-12)
	assert.Equal(t, 2, c.Dimension())
}

func TestConcurrentFirstEmbedsPinOneDimension(t *testing.T) {
	c := newTestClient(t, embeddingsHandler([]float64{3, 4}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vec, err := c.Embed(context.Background(), "concurrent query")
			assert.NoError(t, err)
			assert.Len(t, vec, 2)
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, c.Dimension())
}

func TestEmbedBatchChunksAndPreservesOrder(t *testing.T) {
	var mu sync.Mutex
	var batchSizes []int
	handler := func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		batchSizes = append(batchSizes, len(req.Input))
		mu.Unlock()
		// Return results in reverse order; the client must restore input
		// order from the index field.
		data := make([]map[string]any, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{"index": i, "embedding": []float64{float64(i + 1), 0}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}

	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	t.Setenv("TEST_EMBED_API_KEY", "test-key")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_EMBED_API_KEY", Model: "m", BatchSize: 2})
	require.NoError(t, err)

	texts := []string{"a", "b", "c"}
	vecs, err := c.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []int{2, 1}, batchSizes)
	for _, v := range vecs {
		assert.InDelta(t, 1.0, v[0]*v[0]+v[1]*v[1], 1e-12)
	}
}

func TestEmbedRetriesOnServerError(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	handler := func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		embeddingsHandler([]float64{1, 0})(w, r)
	}
	c := newTestClient(t, handler)

	vec, err := c.Embed(context.Background(), "retry")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}
