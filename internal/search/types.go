// Package search implements the hybrid retrieval pipeline: dense and
// sparse retrieval run concurrently, their hits are fused and enriched
// with video metadata, reranked by a cross-encoder, and aggregated into
// per-video summaries. Every stage degrades to an empty result on
// failure; the pipeline itself never fails.
package search

import (
	"github.com/wassim249/YT-Navigator/internal/chunk"
	"github.com/wassim249/YT-Navigator/internal/store"
)

// Source identifies which retrieval path produced a hit.
type Source string

const (
	// SourceDense marks hits from embedding similarity search.
	SourceDense Source = "dense"

	// SourceSparse marks hits from keyword search.
	SourceSparse Source = "sparse"
)

// RawHit is a retrieval hit before enrichment. Score semantics depend on
// the source: dense hits carry a similarity score, sparse hits a BM25
// score; the two are not comparable and are discarded at rerank time.
type RawHit struct {
	Chunk  chunk.Chunk
	Score  float64
	Source Source
}

// EnrichedCandidate is a hit whose video metadata resolved. Hits whose
// video cannot be resolved never become candidates.
type EnrichedCandidate struct {
	Chunk  chunk.Chunk
	Source Source
	Video  *store.Video
}

// RerankedCandidate is an enriched candidate with its cross-encoder
// relevance score.
type RerankedCandidate struct {
	EnrichedCandidate
	Score float64
}

// ScoredChunk is a transcript segment returned to the caller. Timestamps
// are formatted HH:MM:SS and the score is standardized to [0, 100].
type ScoredChunk struct {
	Text    string  `json:"text"`
	Start   string  `json:"start"`
	End     string  `json:"end"`
	VideoID string  `json:"video_id"`
	Score   float64 `json:"score"`
}

// VideoSummary aggregates a video's retrieved chunks.
type VideoSummary struct {
	VideoID     string  `json:"video_id"`
	Title       string  `json:"title"`
	Thumbnail   string  `json:"thumbnail"`
	PublishedAt string  `json:"published_at"`
	AvgScore    float64 `json:"avg_score"`
}

// QueryResult is the pipeline output. When non-empty, every chunk's
// VideoID appears in Videos, and Videos is sorted by AvgScore descending.
type QueryResult struct {
	Chunks []ScoredChunk  `json:"chunks"`
	Videos []VideoSummary `json:"videos"`
}

// EmptyQueryResult returns a result with empty, non-nil slices.
func EmptyQueryResult() QueryResult {
	return QueryResult{
		Chunks: []ScoredChunk{},
		Videos: []VideoSummary{},
	}
}
