package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courserec/internal/domain"
	"courserec/internal/index"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testGeneration(id string) *domain.Generation {
	return &domain.Generation{
		ID:        id,
		CreatedAt: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
		Embedder:  "tfidf",
		Dimension: 3,
		Vectors: []domain.IndexedVector{
			{
				Code:      "LTAT.02.004",
				Embedding: []float64{0.1, 0.2, 0.3},
				Metadata: domain.Metadata{
					TitleEN:   "Machine Learning",
					Semester:  domain.SemesterSpring,
					Languages: []domain.Language{domain.LangEN},
					Levels:    []domain.Level{domain.LevelMaster},
					Credits:   6,
				},
				RAGText: "Course code: LTAT.02.004\nDescription (EN): machine learning",
			},
			{
				Code:      "MTAT.03.100",
				Embedding: []float64{-0.5, 0, 1.25},
				Metadata:  domain.Metadata{Semester: domain.SemesterAutumn},
				RAGText:   "Course code: MTAT.03.100\nDescription (ET): ajalugu",
			},
		},
	}
}

func TestLoadWithoutSave(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, index.ErrNoGeneration)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	gen := testGeneration("gen-1")
	require.NoError(t, s.Save(ctx, gen))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, gen.ID, loaded.ID)
	assert.Equal(t, gen.Embedder, loaded.Embedder)
	assert.Equal(t, gen.Dimension, loaded.Dimension)
	assert.True(t, gen.CreatedAt.Equal(loaded.CreatedAt))
	require.Len(t, loaded.Vectors, 2)
	// Vectors come back in code order with bit-identical embeddings.
	assert.Equal(t, gen.Vectors[0].Code, loaded.Vectors[0].Code)
	assert.Equal(t, gen.Vectors[0].Embedding, loaded.Vectors[0].Embedding)
	assert.Equal(t, gen.Vectors[0].Metadata, loaded.Vectors[0].Metadata)
	assert.Equal(t, gen.Vectors[0].RAGText, loaded.Vectors[0].RAGText)
	assert.Equal(t, gen.Vectors[1].Code, loaded.Vectors[1].Code)
	assert.Equal(t, gen.Vectors[1].Embedding, loaded.Vectors[1].Embedding)
}

func TestSaveReplacesPreviousGeneration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testGeneration("gen-1")))

	next := testGeneration("gen-2")
	next.Vectors = next.Vectors[:1]
	require.NoError(t, s.Save(ctx, next))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen-2", loaded.ID)
	assert.Len(t, loaded.Vectors, 1)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	ctx := context.Background()

	s, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, testGeneration("gen-1")))
	require.NoError(t, s.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gen-1", loaded.ID)
	assert.Len(t, loaded.Vectors, 2)
}
