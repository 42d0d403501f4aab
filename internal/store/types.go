// Package store provides the persistence layer for the search core:
// relational records for videos and chunks (SQLite), the per-channel
// vector index (HNSW), and the on-demand keyword index (Bleve).
package store

import (
	"context"
	"fmt"

	"github.com/wassim249/YT-Navigator/internal/chunk"
)

// Video is a scraped video record.
type Video struct {
	ID          string
	ChannelID   string
	Title       string
	Thumbnail   string
	PublishedAt string
}

// VideoStore persists video metadata.
type VideoStore interface {
	// SaveVideos upserts video records.
	SaveVideos(ctx context.Context, videos []*Video) error

	// GetVideosByIDs fetches the given videos in a single batched query.
	// IDs with no record are simply absent from the result map.
	GetVideosByIDs(ctx context.Context, ids []string) (map[string]*Video, error)

	// DeleteVideo removes a video and its chunks. Returns the number of
	// chunks removed.
	DeleteVideo(ctx context.Context, id string) (int, error)
}

// ChunkStore persists transcript chunks keyed by fingerprint.
type ChunkStore interface {
	// SaveChunks inserts chunks, skipping fingerprints already present.
	SaveChunks(ctx context.Context, chunks []chunk.Chunk) error

	// ListChunksByChannel returns every chunk belonging to a channel.
	ListChunksByChannel(ctx context.Context, channelID string) ([]chunk.Chunk, error)

	// MissingFingerprints returns the subset of fingerprints not already
	// persisted, preserving input order. Used by ingestion to avoid
	// re-embedding known chunks.
	MissingFingerprints(ctx context.Context, fingerprints []string) ([]string, error)
}

// VectorHit is a chunk returned by similarity search with its
// distance-derived score (higher is closer).
type VectorHit struct {
	Chunk chunk.Chunk
	Score float64
}

// VectorStore indexes chunk embeddings partitioned per channel.
// Partitions are provisioned lazily on first write; searching a channel
// that was never written returns no hits rather than an error.
type VectorStore interface {
	// Add indexes chunks with their embeddings under a channel partition.
	Add(ctx context.Context, channelID string, chunks []chunk.Chunk, vectors [][]float32) error

	// Search returns up to k nearest chunks within a channel partition.
	Search(ctx context.Context, channelID string, query []float32, k int) ([]VectorHit, error)

	// DeleteByVideo drops all vectors of a video from a channel partition.
	DeleteByVideo(ctx context.Context, channelID, videoID string) error

	// Count returns the number of vectors in a channel partition.
	Count(channelID string) int

	// Close releases index resources.
	Close() error
}

// KeywordSearcher runs lexical retrieval over a channel's chunks.
type KeywordSearcher interface {
	// SearchKeyword ranks a channel's chunks against the query.
	SearchKeyword(ctx context.Context, channelID, query string, limit int) ([]chunk.Chunk, error)
}

// ErrDimensionMismatch is returned when a vector's dimension does not
// match the partition's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
