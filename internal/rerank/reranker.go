package rerank

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Reranker scores query/document pairs in fixed-size batches against a
// lazily loaded cross-encoder. Batches are scored in parallel. A batch
// whose scoring fails contributes a zero score for each of its documents
// rather than failing the whole call; only a failure to load the encoder
// is returned as an error.
type Reranker struct {
	handle    *Handle
	batchSize int
}

// NewReranker creates a reranker over the given encoder handle. A batch
// size outside (0, MaxBatchSize] is clamped with a warning.
func NewReranker(handle *Handle, batchSize int) *Reranker {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		slog.Warn("rerank_batch_size_clamped",
			slog.Int("requested", batchSize),
			slog.Int("max", MaxBatchSize))
		batchSize = MaxBatchSize
	}

	return &Reranker{
		handle:    handle,
		batchSize: batchSize,
	}
}

// BatchSize returns the effective batch size after clamping.
func (r *Reranker) BatchSize() int {
	return r.batchSize
}

// Score returns one relevance score per document, aligned with the input
// order. Documents in a failed batch score 0.0.
func (r *Reranker) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	enc, err := r.handle.Get(ctx)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(documents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for start := 0; start < len(documents); start += r.batchSize {
		end := min(start+r.batchSize, len(documents))
		g.Go(func() error {
			// errgroup does not recover goroutine panics; a panicking
			// encoder degrades its batch to zero scores instead of
			// crashing the process.
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("rerank_batch_panic",
						slog.Int("batch_start", start),
						slog.Int("batch_size", end-start),
						slog.Any("panic", rec))
				}
			}()
			batchScores, err := enc.ScorePairs(gctx, query, documents[start:end])
			if err != nil || len(batchScores) != end-start {
				if err != nil {
					slog.Warn("rerank_batch_failed",
						slog.Int("batch_start", start),
						slog.Int("batch_size", end-start),
						slog.String("error", err.Error()))
				} else {
					slog.Warn("rerank_batch_score_count_mismatch",
						slog.Int("batch_start", start),
						slog.Int("expected", end-start),
						slog.Int("got", len(batchScores)))
				}
				// Failed batches score zero; each slot is already 0.0.
				return nil
			}
			copy(scores[start:end], batchScores)
			return nil
		})
	}

	// Workers never return errors, so Wait only reflects context state.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Debug("rerank_scored",
		slog.Int("doc_count", len(documents)),
		slog.Int("batch_size", r.batchSize))

	return scores, nil
}
