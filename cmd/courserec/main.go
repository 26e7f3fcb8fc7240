// Command courserec serves interactive course search against the most
// recently published index generation. It is read-only: rebuilding the
// index is the indexer's job.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"courserec/internal/config"
	"courserec/internal/domain"
	"courserec/internal/embedding/openai"
	"courserec/internal/embedding/tfidf"
	"courserec/internal/engine"
	"courserec/internal/index"
	"courserec/internal/index/qdrant"
	"courserec/internal/index/sqlitestore"
	"courserec/internal/logging"
	"courserec/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/courserec/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	emb, err := buildEmbedder(cfg)
	if err != nil {
		logger.Fatalw("embedder init failed", "error", err)
	}

	var idx domain.VectorIndex
	switch cfg.Index.Type {
	case "sqlite", "":
		store, err := sqlitestore.NewStore(cfg.Index.Path)
		if err != nil {
			logger.Fatalw("index store init failed", "error", err)
		}
		defer store.Close()

		gen, err := store.Load(context.Background())
		if errors.Is(err, index.ErrNoGeneration) {
			logger.Fatalw("index not ready: no generation published yet; run the indexer first", "path", store.Path())
		}
		if err != nil {
			logger.Fatalw("loading index generation failed", "error", err)
		}
		// Re-fit corpus-derived embedders from the stored rag_text; the
		// persisted vectors are reused as-is, nothing is re-embedded.
		if err := emb.Prepare(gen.Texts()); err != nil {
			logger.Fatalw("preparing embedder from stored corpus failed", "error", err)
		}
		local := index.New(emb, store, logger)
		if err := local.Publish(gen); err != nil {
			logger.Fatalw("embedder configuration does not match the stored index", "error", err)
		}
		logger.Infow("index generation loaded",
			"generation", gen.ID, "courses", len(gen.Vectors), "dimension", gen.Dimension, "built_at", gen.CreatedAt)
		idx = local
	case "qdrant":
		if cfg.Index.Qdrant == nil {
			logger.Fatalw("qdrant index config missing")
		}
		remote := qdrant.New(emb, qdrant.Config{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
		}, logger)
		if err := remote.Attach(context.Background()); err != nil {
			logger.Fatalw("index not ready: attaching to qdrant collection failed; run the indexer first", "error", err)
		}
		idx = remote
	default:
		logger.Fatalw("unknown index type", "type", cfg.Index.Type)
	}

	eng := engine.New(emb, idx, engine.Options{
		MaxQueryLen: cfg.Query.MaxQueryLen,
		Denylist:    cfg.Query.Denylist,
		DefaultTopK: cfg.Query.DefaultTopK,
		MaxTopK:     cfg.Query.MaxTopK,
	}, logger)

	m := tui.New(eng)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		logger.Fatalw("tui failed", "error", err)
	}
}

func buildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		oc := cfg.Embedder.OpenAI
		if oc == nil {
			oc = &config.OpenAIEmbedderConfig{}
		}
		return openai.NewClient(openai.Config{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
			BatchSize: oc.BatchSize,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}
