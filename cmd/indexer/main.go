// Command indexer is the operator-invoked rebuild trigger: it reads the
// validated course feed, builds the bilingual corpus and publishes a new
// index generation. There is no incremental path; every run is a full
// rebuild.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"courserec/internal/config"
	"courserec/internal/corpus"
	"courserec/internal/domain"
	"courserec/internal/embedding/openai"
	"courserec/internal/embedding/tfidf"
	"courserec/internal/feed"
	"courserec/internal/index"
	"courserec/internal/index/qdrant"
	"courserec/internal/index/sqlitestore"
	"courserec/internal/logging"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, feedPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/courserec/config.yaml if not provided)")
	flag.StringVar(&feedPath, "feed", "", "Path to the course feed CSV")
	flag.Parse()
	if feedPath == "" {
		log.Fatal("usage: indexer [--config=config.yaml] --feed=courses.csv")
	}

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
		idx = index.New(emb, store, logger)
	case "qdrant":
		if cfg.Index.Qdrant == nil {
			logger.Fatalw("qdrant index config missing")
		}
		idx = qdrant.New(emb, qdrant.Config{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
		}, logger)
	default:
		logger.Fatalw("unknown index type", "type", cfg.Index.Type)
	}

	records, err := feed.ReadCourses(feedPath)
	if err != nil {
		logger.Fatalw("reading course feed failed", "feed", feedPath, "error", err)
	}
	logger.Infow("course feed loaded", "feed", feedPath, "records", len(records))

	builder := corpus.NewBuilder(cfg.Corpus.MaxTextLen, logger)
	entries, rejections := builder.Build(records)
	logger.Infow("corpus built",
		"entries", len(entries), "rejected", len(rejections), "rejections", corpus.Summary(rejections))

	gen, err := idx.Rebuild(context.Background(), entries)
	if err != nil {
		logger.Fatalw("index rebuild failed", "error", err)
	}
	logger.Infow("rebuild complete",
		"generation", gen.ID, "courses", len(entries), "dimension", gen.Dimension, "embedder", gen.Embedder)
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
