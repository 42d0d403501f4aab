package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wassim249/YT-Navigator/internal/chunk"
	"github.com/wassim249/YT-Navigator/internal/store"
)

// MergeHits concatenates dense and sparse hits, dense first. Insertion
// order carries through enrichment and dedup, so on identical text the
// dense hit wins.
func MergeHits(dense []store.VectorHit, sparse []chunk.Chunk) []RawHit {
	merged := make([]RawHit, 0, len(dense)+len(sparse))
	for _, h := range dense {
		merged = append(merged, RawHit{Chunk: h.Chunk, Score: h.Score, Source: SourceDense})
	}
	for _, c := range sparse {
		merged = append(merged, RawHit{Chunk: c, Source: SourceSparse})
	}
	return merged
}

// Enrich attaches video metadata to each hit via one batched lookup and
// drops hits whose video cannot be resolved. The result is deduplicated
// by exact text content, first occurrence winning.
func Enrich(ctx context.Context, videos store.VideoStore, hits []RawHit) ([]EnrichedCandidate, error) {
	if len(hits) == 0 {
		return []EnrichedCandidate{}, nil
	}

	ids := distinctVideoIDs(hits)
	if len(ids) == 0 {
		return []EnrichedCandidate{}, nil
	}

	byID, err := videos.GetVideosByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("batch video lookup: %w", err)
	}

	candidates := make([]EnrichedCandidate, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	dropped := 0
	for _, h := range hits {
		v, ok := byID[h.Chunk.VideoID]
		if !ok {
			// Orphaned chunk, usually from an in-flight video deletion.
			dropped++
			continue
		}
		if _, dup := seen[h.Chunk.Text]; dup {
			continue
		}
		seen[h.Chunk.Text] = struct{}{}
		candidates = append(candidates, EnrichedCandidate{
			Chunk:  h.Chunk,
			Source: h.Source,
			Video:  v,
		})
	}

	if dropped > 0 {
		slog.Debug("enrichment_dropped_orphans",
			slog.Int("dropped", dropped),
			slog.Int("kept", len(candidates)))
	}

	return candidates, nil
}

// distinctVideoIDs collects the distinct non-empty video ids referenced
// by the hits, preserving first-encountered order.
func distinctVideoIDs(hits []RawHit) []string {
	seen := make(map[string]struct{}, len(hits))
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		id := h.Chunk.VideoID
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
