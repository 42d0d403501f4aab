package store

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"

	"github.com/wassim249/YT-Navigator/internal/chunk"
)

// VectorStoreConfig configures the HNSW vector store.
type VectorStoreConfig struct {
	// Dimensions is the embedding dimension. Required.
	Dimensions int

	// M is the maximum number of graph neighbors per node.
	M int

	// EfSearch is the search beam width.
	EfSearch int
}

// HNSWStore implements VectorStore using coder/hnsw, one graph per channel.
// Pure Go, no CGO. Partitions are created lazily on first Add; searching an
// unknown channel returns no hits.
type HNSWStore struct {
	mu         sync.RWMutex
	partitions map[string]*hnswPartition
	config     VectorStoreConfig
	closed     bool
}

// hnswPartition holds one channel's graph plus chunk payloads keyed by the
// graph's internal uint64 keys.
type hnswPartition struct {
	graph    *hnsw.Graph[uint64]
	payloads map[uint64]chunk.Chunk
	keys     map[string]uint64 // fingerprint -> internal key
	nextKey  uint64
}

var _ VectorStore = (*HNSWStore)(nil)

// NewHNSWStore creates a channel-partitioned vector store.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector store dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}
	return &HNSWStore{
		partitions: make(map[string]*hnswPartition),
		config:     cfg,
	}, nil
}

func (s *HNSWStore) newPartition() *hnswPartition {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = s.config.M
	graph.EfSearch = s.config.EfSearch
	graph.Ml = 0.25
	return &hnswPartition{
		graph:    graph,
		payloads: make(map[uint64]chunk.Chunk),
		keys:     make(map[string]uint64),
	}
}

// Add indexes chunks with their embeddings, provisioning the channel
// partition on first write. Re-adding a fingerprint replaces its payload.
func (s *HNSWStore) Add(ctx context.Context, channelID string, chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	p, ok := s.partitions[channelID]
	if !ok {
		p = s.newPartition()
		s.partitions[channelID] = p
	}

	for i, c := range chunks {
		fp := c.Fingerprint()

		// Lazy deletion on re-add: orphan the old key rather than
		// removing the graph node (coder/hnsw misbehaves when the
		// last node is deleted).
		if oldKey, exists := p.keys[fp]; exists {
			delete(p.payloads, oldKey)
			delete(p.keys, fp)
		}

		key := p.nextKey
		p.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		p.graph.Add(hnsw.MakeNode(key, vec))
		p.keys[fp] = key
		p.payloads[key] = c
	}

	return nil
}

// Search finds up to k nearest chunks within a channel partition.
// An unknown channel yields no hits, not an error: partitions are created
// lazily elsewhere and a channel may simply never have been scanned.
func (s *HNSWStore) Search(ctx context.Context, channelID string, query []float32, k int) ([]VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	p, ok := s.partitions[channelID]
	if !ok || p.graph.Len() == 0 {
		return []VectorHit{}, nil
	}

	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	nodes := p.graph.Search(normalized, k)

	hits := make([]VectorHit, 0, len(nodes))
	for _, node := range nodes {
		payload, exists := p.payloads[node.Key]
		if !exists {
			// Orphaned by lazy deletion.
			continue
		}
		distance := p.graph.Distance(normalized, node.Value)
		hits = append(hits, VectorHit{
			Chunk: payload,
			Score: cosineDistanceToScore(distance),
		})
	}
	return hits, nil
}

// DeleteByVideo lazily drops all of a video's vectors from a partition.
func (s *HNSWStore) DeleteByVideo(ctx context.Context, channelID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	p, ok := s.partitions[channelID]
	if !ok {
		return nil
	}

	for fp, key := range p.keys {
		if p.payloads[key].VideoID == videoID {
			delete(p.payloads, key)
			delete(p.keys, fp)
		}
	}
	return nil
}

// Count returns the number of live vectors in a channel partition.
func (s *HNSWStore) Count(channelID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.partitions[channelID]
	if !ok {
		return 0
	}
	return len(p.keys)
}

// Close releases all partitions.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions = nil
	s.closed = true
	return nil
}

// cosineDistanceToScore converts cosine distance (0 identical, 2 opposite)
// to a similarity score where higher is closer.
func cosineDistanceToScore(distance float32) float64 {
	return 1.0 - float64(distance)
}

// normalizeVectorInPlace scales a vector to unit length.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return
	}
	for i, val := range v {
		v[i] = float32(float64(val) / magnitude)
	}
}
