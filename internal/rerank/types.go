package rerank

import (
	"context"
	"time"
)

// Batching defaults for cross-encoder scoring.
const (
	// DefaultBatchSize is the number of query/document pairs scored per request.
	DefaultBatchSize = 32

	// MaxBatchSize caps the configured batch size. Larger batches are clamped.
	MaxBatchSize = 64

	// DefaultTimeout is the per-request timeout for scoring calls.
	DefaultTimeout = 30 * time.Second
)

// CrossEncoder scores query/document pairs jointly.
//
// ScorePairs returns one relevance score per document, aligned with the
// input order. Implementations must not reorder or drop documents.
type CrossEncoder interface {
	// ScorePairs scores each document against the query.
	ScorePairs(ctx context.Context, query string, documents []string) ([]float64, error)

	// ModelName returns the model identifier used for scoring.
	ModelName() string

	// Available reports whether the encoder can currently serve requests.
	Available(ctx context.Context) bool

	// Close releases underlying resources.
	Close() error
}
