// Package ytnavigator wires the search core together: configuration,
// stores, embedding and rerank backends, the ingestion pipeline and the
// query pipeline. The web and agent layers consume the App it builds.
package ytnavigator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wassim249/YT-Navigator/internal/config"
	"github.com/wassim249/YT-Navigator/internal/embed"
	"github.com/wassim249/YT-Navigator/internal/ingest"
	"github.com/wassim249/YT-Navigator/internal/logging"
	"github.com/wassim249/YT-Navigator/internal/rerank"
	"github.com/wassim249/YT-Navigator/internal/search"
	"github.com/wassim249/YT-Navigator/internal/store"
	"github.com/wassim249/YT-Navigator/internal/telemetry"
	"github.com/wassim249/YT-Navigator/pkg/version"
)

// App is the assembled search core.
type App struct {
	Config  *config.Config
	Search  *search.SearchService
	Ingest  *ingest.Ingestor
	Metrics *telemetry.QueryMetrics

	db       *store.SQLiteStore
	vectors  store.VectorStore
	embedder embed.Embedder
	handle   *rerank.Handle

	logCleanup func()
}

// New builds an App from configuration. The reranker model is not loaded
// here; it loads lazily on the first query that needs it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logCleanup, err := logging.SetupDefault(logging.Config{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		FilePath:      cfg.Logging.FilePath,
		WriteToStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}

	slog.Info("starting", slog.String("version", version.String()))

	db, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		logCleanup()
		return nil, fmt.Errorf("open store: %w", err)
	}

	embedder, err := embed.New(ctx, cfg.Embeddings)
	if err != nil {
		_ = db.Close()
		logCleanup()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	vectors, err := store.NewHNSWStore(store.VectorStoreConfig{
		Dimensions: embedder.Dimensions(),
	})
	if err != nil {
		_ = embedder.Close()
		_ = db.Close()
		logCleanup()
		return nil, fmt.Errorf("create vector store: %w", err)
	}

	keywords := store.NewBleveKeywordSearcher(db, cfg.Search.KeywordCacheSize, cfg.Search.KeywordCacheTTL.Std())

	handle := rerank.NewHandle(func(ctx context.Context) (rerank.CrossEncoder, error) {
		return rerank.NewHTTPCrossEncoder(ctx, rerank.HTTPCrossEncoderConfig{
			Endpoint: cfg.Reranker.Endpoint,
			Model:    cfg.Reranker.Model,
			Timeout:  cfg.Reranker.Timeout.Std(),
		})
	})
	reranker := rerank.NewReranker(handle, cfg.Reranker.BatchSize)

	metrics := telemetry.NewQueryMetrics()

	svc := search.NewService(embedder, vectors, keywords, db, reranker, search.ServiceConfig{
		TopK:          cfg.Search.TopK,
		TopVideos:     cfg.Search.TopVideos,
		FallbackLimit: cfg.Search.FallbackLimit,
	}).WithMetrics(metrics)

	ingestor := ingest.NewIngestor(db, db, vectors, embedder, ingest.Config{
		EmbedBatchSize: cfg.Embeddings.BatchSize,
	})

	return &App{
		Config:     cfg,
		Search:     svc,
		Ingest:     ingestor,
		Metrics:    metrics,
		db:         db,
		vectors:    vectors,
		embedder:   embedder,
		handle:     handle,
		logCleanup: logCleanup,
	}, nil
}

// ReloadReranker releases the cached cross-encoder; the next query
// reloads it. Used after the rerank backend restarts or swaps models.
func (a *App) ReloadReranker() error {
	return a.handle.Clear()
}

// Close releases every resource the App owns.
func (a *App) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(a.handle.Clear())
	keep(a.embedder.Close())
	keep(a.vectors.Close())
	keep(a.db.Close())

	if a.logCleanup != nil {
		a.logCleanup()
	}
	return firstErr
}
