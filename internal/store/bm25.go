package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/wassim249/YT-Navigator/internal/chunk"
)

// BleveKeywordSearcher implements KeywordSearcher on Bleve.
//
// The index is built on demand from a channel's persisted chunks rather
// than maintained incrementally: freshness against the chunk store wins
// over rebuild cost at this scale. A short-lived LRU+TTL cache keyed by
// channel id absorbs repeated queries within a conversation turn.
type BleveKeywordSearcher struct {
	chunks ChunkStore
	cache  *expirable.LRU[string, *channelIndex]
}

var _ KeywordSearcher = (*BleveKeywordSearcher)(nil)

// channelIndex is a mem-only Bleve index over one channel's chunk texts,
// with payloads resolved by fingerprint. Dropped indexes are reclaimed by
// the GC; mem-only Bleve holds no file handles.
type channelIndex struct {
	index    bleve.Index
	payloads map[string]chunk.Chunk
	builtAt  time.Time
}

// NewBleveKeywordSearcher creates a keyword searcher over the chunk store.
// cacheSize 0 disables caching entirely and rebuilds the index per query.
func NewBleveKeywordSearcher(chunks ChunkStore, cacheSize int, cacheTTL time.Duration) *BleveKeywordSearcher {
	s := &BleveKeywordSearcher{chunks: chunks}
	if cacheSize > 0 && cacheTTL > 0 {
		s.cache = expirable.NewLRU[string, *channelIndex](cacheSize, nil, cacheTTL)
	}
	return s
}

// SearchKeyword ranks a channel's chunks against the query with BM25.
func (s *BleveKeywordSearcher) SearchKeyword(ctx context.Context, channelID, query string, limit int) ([]chunk.Chunk, error) {
	idx, err := s.indexForChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		// Channel has no chunks.
		return []chunk.Chunk{}, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("text")

	req := bleve.NewSearchRequestOptions(matchQuery, limit, 0, false)
	result, err := idx.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	hits := make([]chunk.Chunk, 0, len(result.Hits))
	for _, hit := range result.Hits {
		c, ok := idx.payloads[hit.ID]
		if !ok {
			continue
		}
		hits = append(hits, c)
	}
	return hits, nil
}

// indexForChannel returns a cached index or builds one from the store.
// Returns nil (no error) when the channel has no chunks.
func (s *BleveKeywordSearcher) indexForChannel(ctx context.Context, channelID string) (*channelIndex, error) {
	if s.cache != nil {
		if idx, ok := s.cache.Get(channelID); ok {
			return idx, nil
		}
	}

	chunks, err := s.chunks.ListChunksByChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("list chunks for channel %s: %w", channelID, err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	start := time.Now()
	idx, err := buildChannelIndex(chunks)
	if err != nil {
		return nil, fmt.Errorf("build keyword index for channel %s: %w", channelID, err)
	}
	slog.Debug("keyword_index_built",
		slog.String("channel_id", channelID),
		slog.Int("chunks", len(chunks)),
		slog.Duration("took", time.Since(start)))

	if s.cache != nil {
		s.cache.Add(channelID, idx)
	}
	return idx, nil
}

// buildChannelIndex indexes chunk texts into a mem-only Bleve index.
// Duplicate fingerprints keep the first occurrence.
func buildChannelIndex(chunks []chunk.Chunk) (*channelIndex, error) {
	idx, err := bleve.NewMemOnly(createIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	payloads := make(map[string]chunk.Chunk, len(chunks))
	batch := idx.NewBatch()
	for _, c := range chunks {
		fp := c.Fingerprint()
		if _, seen := payloads[fp]; seen {
			continue
		}
		payloads[fp] = c
		if err := batch.Index(fp, map[string]any{"text": c.Text}); err != nil {
			return nil, fmt.Errorf("index chunk: %w", err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}

	return &channelIndex{
		index:    idx,
		payloads: payloads,
		builtAt:  time.Now(),
	}, nil
}

// createIndexMapping maps the text field with the standard analyzer.
// Transcripts are natural language; no code-aware tokenization needed.
func createIndexMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false
	textField.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", textField)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}
