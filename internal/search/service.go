package search

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wassim249/YT-Navigator/internal/chunk"
	"github.com/wassim249/YT-Navigator/internal/embed"
	"github.com/wassim249/YT-Navigator/internal/rerank"
	"github.com/wassim249/YT-Navigator/internal/store"
	"github.com/wassim249/YT-Navigator/internal/telemetry"
)

const (
	// DefaultTopK is the number of hits requested from each retrieval path.
	DefaultTopK = 20

	// DefaultFallbackLimit caps the candidates kept when reranking fails.
	DefaultFallbackLimit = 10

	// FallbackScore is the uniform score assigned when reranking fails.
	FallbackScore = 0.5
)

// ServiceConfig tunes the pipeline. Zero values take defaults.
type ServiceConfig struct {
	// TopK is the per-path retrieval depth.
	TopK int

	// TopVideos is the number of distinct videos retained per query.
	TopVideos int

	// FallbackLimit caps candidates when the reranker is unavailable.
	FallbackLimit int
}

// NewService wires the pipeline stages together.
func NewService(
	embedder embed.Embedder,
	vectors store.VectorStore,
	keywords store.KeywordSearcher,
	videos store.VideoStore,
	reranker *rerank.Reranker,
	cfg ServiceConfig,
) *SearchService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.TopVideos <= 0 {
		cfg.TopVideos = DefaultTopVideos
	}
	if cfg.FallbackLimit <= 0 {
		cfg.FallbackLimit = DefaultFallbackLimit
	}

	return &SearchService{
		embedder: embedder,
		vectors:  vectors,
		keywords: keywords,
		videos:   videos,
		reranker: reranker,
		config:   cfg,
	}
}

// SearchService is the orchestrator over retrieval, fusion, reranking
// and aggregation.
type SearchService struct {
	embedder embed.Embedder
	vectors  store.VectorStore
	keywords store.KeywordSearcher
	videos   store.VideoStore
	reranker *rerank.Reranker
	config   ServiceConfig
	metrics  *telemetry.QueryMetrics
}

// WithMetrics attaches a query metrics recorder. Optional; a nil recorder
// disables recording.
func (s *SearchService) WithMetrics(m *telemetry.QueryMetrics) *SearchService {
	s.metrics = m
	return s
}

// Search answers a natural-language query over one channel's transcripts.
// It always returns a valid QueryResult, empty at worst.
func (s *SearchService) Search(ctx context.Context, query, channelID string) (result QueryResult) {
	start := time.Now()
	event := telemetry.QueryEvent{
		Query:     query,
		ChannelID: channelID,
		Timestamp: start,
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("search_panic_recovered",
				slog.String("channel_id", channelID),
				slog.Any("panic", r))
			result = EmptyQueryResult()
		}
		event.Duration = time.Since(start)
		event.Chunks = len(result.Chunks)
		event.Videos = len(result.Videos)
		if s.metrics != nil {
			s.metrics.Record(event)
		}
	}()

	if query == "" || channelID == "" {
		slog.Warn("search_empty_input",
			slog.Bool("empty_query", query == ""),
			slog.Bool("empty_channel", channelID == ""))
		return EmptyQueryResult()
	}

	dense, sparse := s.retrieve(ctx, query, channelID)
	event.DenseHits = len(dense)
	event.SparseHits = len(sparse)

	hits := MergeHits(dense, sparse)
	if len(hits) == 0 {
		return EmptyQueryResult()
	}

	candidates, err := Enrich(ctx, s.videos, hits)
	if err != nil {
		slog.Warn("search_enrichment_failed",
			slog.String("channel_id", channelID),
			slog.String("error", err.Error()))
		return EmptyQueryResult()
	}
	if len(candidates) == 0 {
		return EmptyQueryResult()
	}
	event.Candidates = len(candidates)

	reranked := s.rerank(ctx, query, channelID, candidates, &event)
	if len(reranked) == 0 {
		return EmptyQueryResult()
	}

	return Aggregate(reranked, s.config.TopVideos)
}

// retrieve runs dense and sparse retrieval concurrently. Each path
// degrades independently to an empty hit list on error.
func (s *SearchService) retrieve(ctx context.Context, query, channelID string) ([]store.VectorHit, []chunk.Chunk) {
	var (
		dense  []store.VectorHit
		sparse []chunk.Chunk
	)

	g, gctx := errgroup.WithContext(ctx)

	// errgroup does not recover goroutine panics, so each worker contains
	// its own: a panicking path degrades to empty output like any other
	// failure instead of killing the process.
	g.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("search_dense_panic",
					slog.String("channel_id", channelID),
					slog.Any("panic", r))
			}
		}()
		vec, err := s.embedder.Embed(gctx, query)
		if err != nil {
			slog.Warn("search_embedding_failed",
				slog.String("channel_id", channelID),
				slog.String("error", err.Error()))
			return nil
		}
		hits, err := s.vectors.Search(gctx, channelID, vec, s.config.TopK)
		if err != nil {
			slog.Warn("search_dense_failed",
				slog.String("channel_id", channelID),
				slog.String("error", err.Error()))
			return nil
		}
		dense = hits
		return nil
	})

	g.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("search_sparse_panic",
					slog.String("channel_id", channelID),
					slog.Any("panic", r))
			}
		}()
		chunks, err := s.keywords.SearchKeyword(gctx, channelID, query, s.config.TopK)
		if err != nil {
			slog.Warn("search_sparse_failed",
				slog.String("channel_id", channelID),
				slog.String("error", err.Error()))
			return nil
		}
		sparse = chunks
		return nil
	})

	// Workers swallow their own errors; Wait cannot fail.
	_ = g.Wait()

	return dense, sparse
}

// rerank scores candidates with the cross-encoder and sorts them by score
// descending. If scoring fails outright, the first FallbackLimit
// candidates are kept in retrieval order at FallbackScore.
func (s *SearchService) rerank(ctx context.Context, query, channelID string, candidates []EnrichedCandidate, event *telemetry.QueryEvent) []RerankedCandidate {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Chunk.Text
	}

	scores, err := s.reranker.Score(ctx, query, texts)
	if err != nil || len(scores) != len(candidates) {
		if err != nil {
			slog.Warn("search_rerank_failed",
				slog.String("channel_id", channelID),
				slog.String("error", err.Error()))
		}
		event.RerankFallback = true
		return s.fallbackCandidates(candidates)
	}

	reranked := make([]RerankedCandidate, len(candidates))
	for i, c := range candidates {
		reranked[i] = RerankedCandidate{EnrichedCandidate: c, Score: scores[i]}
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})

	return reranked
}

// fallbackCandidates keeps the top candidates in retrieval order with a
// uniform neutral score.
func (s *SearchService) fallbackCandidates(candidates []EnrichedCandidate) []RerankedCandidate {
	limit := min(s.config.FallbackLimit, len(candidates))
	reranked := make([]RerankedCandidate, limit)
	for i := 0; i < limit; i++ {
		reranked[i] = RerankedCandidate{
			EnrichedCandidate: candidates[i],
			Score:             FallbackScore,
		}
	}
	return reranked
}
