package embed

import (
	"context"
	"fmt"

	"github.com/wassim249/YT-Navigator/internal/config"
)

// New creates an embedder from configuration.
// Provider "ollama" requires the endpoint to be reachable; "static" never
// fails and is the offline/test fallback.
func New(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
	case "static":
		return NewStaticEmbedder(), nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}
}
