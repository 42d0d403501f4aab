// Package ingest persists scraped transcript chunks: it skips chunks
// already known by fingerprint, embeds only the new ones, and writes
// them to the relational and vector stores.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wassim249/YT-Navigator/internal/chunk"
	"github.com/wassim249/YT-Navigator/internal/embed"
	"github.com/wassim249/YT-Navigator/internal/errors"
	"github.com/wassim249/YT-Navigator/internal/store"
)

// DefaultEmbedBatchSize is the number of chunks embedded per model call.
const DefaultEmbedBatchSize = 32

// Config contains configuration for the Ingestor.
type Config struct {
	// EmbedBatchSize is the number of chunks embedded per call.
	// Defaults to DefaultEmbedBatchSize if zero.
	EmbedBatchSize int
}

// Result summarizes one ingestion run.
type Result struct {
	Total    int
	Skipped  int
	Ingested int
	Duration time.Duration
}

// Ingestor writes videos and their transcript chunks to the stores.
// Writes for one channel are serialized; the search path is unaffected.
type Ingestor struct {
	videos   store.VideoStore
	chunks   store.ChunkStore
	vectors  store.VectorStore
	embedder embed.Embedder
	config   Config
	mu       sync.Mutex
}

// NewIngestor creates an ingestor over the given stores and embedder.
func NewIngestor(videos store.VideoStore, chunks store.ChunkStore, vectors store.VectorStore, embedder embed.Embedder, cfg Config) *Ingestor {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = DefaultEmbedBatchSize
	}
	return &Ingestor{
		videos:   videos,
		chunks:   chunks,
		vectors:  vectors,
		embedder: embedder,
		config:   cfg,
	}
}

// IngestVideos upserts video metadata records.
func (in *Ingestor) IngestVideos(ctx context.Context, videos []*store.Video) error {
	if len(videos) == 0 {
		return nil
	}
	if err := in.videos.SaveVideos(ctx, videos); err != nil {
		return errors.Recoverable(errors.StageIngest, "save videos", err)
	}
	return nil
}

// IngestChunks persists new chunks for a channel. Chunks whose
// fingerprint is already stored are skipped entirely, so re-scanning a
// channel never re-embeds known transcript segments.
func (in *Ingestor) IngestChunks(ctx context.Context, channelID string, chunks []chunk.Chunk) (Result, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	start := time.Now()
	result := Result{Total: len(chunks)}

	if len(chunks) == 0 {
		return result, nil
	}

	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return result, errors.Fatal(errors.StageIngest, fmt.Sprintf("invalid chunk at index %d", i), err)
		}
	}

	fresh, err := in.filterKnown(ctx, chunks)
	if err != nil {
		return result, err
	}
	result.Skipped = len(chunks) - len(fresh)

	if len(fresh) == 0 {
		result.Duration = time.Since(start)
		slog.Debug("ingest_all_chunks_known",
			slog.String("channel_id", channelID),
			slog.Int("total", result.Total))
		return result, nil
	}

	for batchStart := 0; batchStart < len(fresh); batchStart += in.config.EmbedBatchSize {
		batchEnd := min(batchStart+in.config.EmbedBatchSize, len(fresh))
		batch := fresh[batchStart:batchEnd]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := in.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return result, errors.Recoverable(errors.StageEmbedding, "embed chunk batch", err)
		}

		if err := in.vectors.Add(ctx, channelID, batch, vectors); err != nil {
			return result, errors.Recoverable(errors.StageStore, "index chunk vectors", err)
		}

		if err := in.chunks.SaveChunks(ctx, batch); err != nil {
			return result, errors.Recoverable(errors.StageStore, "save chunks", err)
		}

		result.Ingested += len(batch)
	}

	result.Duration = time.Since(start)
	slog.Info("ingest_completed",
		slog.String("channel_id", channelID),
		slog.Int("total", result.Total),
		slog.Int("skipped", result.Skipped),
		slog.Int("ingested", result.Ingested),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// filterKnown returns the chunks whose fingerprints are not yet stored,
// preserving input order.
func (in *Ingestor) filterKnown(ctx context.Context, chunks []chunk.Chunk) ([]chunk.Chunk, error) {
	fingerprints := make([]string, len(chunks))
	byFingerprint := make(map[string]chunk.Chunk, len(chunks))
	for i, c := range chunks {
		fp := c.Fingerprint()
		fingerprints[i] = fp
		if _, ok := byFingerprint[fp]; !ok {
			byFingerprint[fp] = c
		}
	}

	missing, err := in.chunks.MissingFingerprints(ctx, fingerprints)
	if err != nil {
		return nil, errors.Recoverable(errors.StageStore, "check chunk fingerprints", err)
	}

	fresh := make([]chunk.Chunk, 0, len(missing))
	seen := make(map[string]struct{}, len(missing))
	for _, fp := range missing {
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		fresh = append(fresh, byFingerprint[fp])
	}
	return fresh, nil
}

// DeleteVideo removes a video's records and vectors.
func (in *Ingestor) DeleteVideo(ctx context.Context, channelID, videoID string) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	removed, err := in.videos.DeleteVideo(ctx, videoID)
	if err != nil {
		return errors.Recoverable(errors.StageStore, "delete video", err)
	}

	if err := in.vectors.DeleteByVideo(ctx, channelID, videoID); err != nil {
		return errors.Recoverable(errors.StageStore, "delete video vectors", err)
	}

	slog.Info("video_deleted",
		slog.String("channel_id", channelID),
		slog.String("video_id", videoID),
		slog.Int("chunks_removed", removed))

	return nil
}
