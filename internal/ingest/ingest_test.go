package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wassim249/YT-Navigator/internal/chunk"
	"github.com/wassim249/YT-Navigator/internal/errors"
	"github.com/wassim249/YT-Navigator/internal/store"
)

type memChunkStore struct {
	known map[string]chunk.Chunk
	saves int
}

func newMemChunkStore() *memChunkStore {
	return &memChunkStore{known: make(map[string]chunk.Chunk)}
}

func (m *memChunkStore) SaveChunks(_ context.Context, chunks []chunk.Chunk) error {
	m.saves++
	for _, c := range chunks {
		m.known[c.Fingerprint()] = c
	}
	return nil
}

func (m *memChunkStore) ListChunksByChannel(_ context.Context, channelID string) ([]chunk.Chunk, error) {
	var out []chunk.Chunk
	for _, c := range m.known {
		if c.ChannelID == channelID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memChunkStore) MissingFingerprints(_ context.Context, fingerprints []string) ([]string, error) {
	var missing []string
	for _, fp := range fingerprints {
		if _, ok := m.known[fp]; !ok {
			missing = append(missing, fp)
		}
	}
	return missing, nil
}

type memVideoStore struct {
	saved []*store.Video
}

func (m *memVideoStore) SaveVideos(_ context.Context, videos []*store.Video) error {
	m.saved = append(m.saved, videos...)
	return nil
}

func (m *memVideoStore) GetVideosByIDs(context.Context, []string) (map[string]*store.Video, error) {
	return map[string]*store.Video{}, nil
}

func (m *memVideoStore) DeleteVideo(context.Context, string) (int, error) { return 2, nil }

type memVectorStore struct {
	added   int
	deleted []string
}

func (m *memVectorStore) Add(_ context.Context, _ string, chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch")
	}
	m.added += len(chunks)
	return nil
}

func (m *memVectorStore) Search(context.Context, string, []float32, int) ([]store.VectorHit, error) {
	return nil, nil
}

func (m *memVectorStore) DeleteByVideo(_ context.Context, _ string, videoID string) error {
	m.deleted = append(m.deleted, videoID)
	return nil
}

func (m *memVectorStore) Count(string) int { return m.added }
func (m *memVectorStore) Close() error     { return nil }

type countingEmbedder struct {
	calls   int
	failErr error
}

func (e *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (e *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.failErr != nil {
		return nil, e.failErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (e *countingEmbedder) Dimensions() int                { return 2 }
func (e *countingEmbedder) ModelName() string              { return "counting" }
func (e *countingEmbedder) Available(context.Context) bool { return true }
func (e *countingEmbedder) Close() error                   { return nil }

func testChunk(text, videoID string) chunk.Chunk {
	return chunk.Chunk{
		Text:      text,
		Start:     0,
		End:       10,
		VideoID:   videoID,
		ChannelID: "C1",
	}
}

func newTestIngestor(chunks *memChunkStore, vectors *memVectorStore, embedder *countingEmbedder) *Ingestor {
	return NewIngestor(&memVideoStore{}, chunks, vectors, embedder, Config{EmbedBatchSize: 2})
}

func TestIngestChunks_EmbedsAndStoresNewChunks(t *testing.T) {
	chunks := newMemChunkStore()
	vectors := &memVectorStore{}
	embedder := &countingEmbedder{}
	in := newTestIngestor(chunks, vectors, embedder)

	result, err := in.IngestChunks(context.Background(), "C1", []chunk.Chunk{
		testChunk("one", "V1"),
		testChunk("two", "V1"),
		testChunk("three", "V2"),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 3, result.Ingested)
	assert.Equal(t, 3, vectors.added)
	assert.Len(t, chunks.known, 3)
	// Batch size 2: three chunks take two embed calls.
	assert.Equal(t, 2, embedder.calls)
}

func TestIngestChunks_SkipsKnownFingerprints(t *testing.T) {
	chunks := newMemChunkStore()
	vectors := &memVectorStore{}
	embedder := &countingEmbedder{}
	in := newTestIngestor(chunks, vectors, embedder)

	first := []chunk.Chunk{testChunk("one", "V1"), testChunk("two", "V1")}
	_, err := in.IngestChunks(context.Background(), "C1", first)
	require.NoError(t, err)

	// Re-ingest the same chunks plus one new: only the new one embeds.
	second := append(first, testChunk("three", "V2"))
	result, err := in.IngestChunks(context.Background(), "C1", second)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 1, result.Ingested)
	assert.Equal(t, 3, vectors.added)
}

func TestIngestChunks_AllKnownSkipsEmbedding(t *testing.T) {
	chunks := newMemChunkStore()
	embedder := &countingEmbedder{}
	in := newTestIngestor(chunks, &memVectorStore{}, embedder)

	batch := []chunk.Chunk{testChunk("one", "V1")}
	_, err := in.IngestChunks(context.Background(), "C1", batch)
	require.NoError(t, err)
	callsAfterFirst := embedder.calls

	result, err := in.IngestChunks(context.Background(), "C1", batch)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Ingested)
	assert.Equal(t, callsAfterFirst, embedder.calls)
}

func TestIngestChunks_DuplicateInputIngestedOnce(t *testing.T) {
	chunks := newMemChunkStore()
	vectors := &memVectorStore{}
	in := newTestIngestor(chunks, vectors, &countingEmbedder{})

	c := testChunk("same", "V1")
	result, err := in.IngestChunks(context.Background(), "C1", []chunk.Chunk{c, c})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Ingested)
	assert.Equal(t, 1, vectors.added)
}

func TestIngestChunks_InvalidChunkRejected(t *testing.T) {
	in := newTestIngestor(newMemChunkStore(), &memVectorStore{}, &countingEmbedder{})

	bad := testChunk("", "V1")
	_, err := in.IngestChunks(context.Background(), "C1", []chunk.Chunk{bad})
	require.Error(t, err)
	assert.False(t, errors.IsRecoverable(err))
}

func TestIngestChunks_EmbedFailureIsRecoverable(t *testing.T) {
	embedder := &countingEmbedder{failErr: fmt.Errorf("ollama down")}
	in := newTestIngestor(newMemChunkStore(), &memVectorStore{}, embedder)

	_, err := in.IngestChunks(context.Background(), "C1", []chunk.Chunk{testChunk("one", "V1")})
	require.Error(t, err)
	assert.True(t, errors.IsRecoverable(err))
}

func TestIngestChunks_Empty(t *testing.T) {
	in := newTestIngestor(newMemChunkStore(), &memVectorStore{}, &countingEmbedder{})

	result, err := in.IngestChunks(context.Background(), "C1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
}

func TestDeleteVideo_RemovesRecordsAndVectors(t *testing.T) {
	vectors := &memVectorStore{}
	in := newTestIngestor(newMemChunkStore(), vectors, &countingEmbedder{})

	err := in.DeleteVideo(context.Background(), "C1", "V1")
	require.NoError(t, err)
	assert.Equal(t, []string{"V1"}, vectors.deleted)
}

func TestIngestVideos_Saves(t *testing.T) {
	videos := &memVideoStore{}
	in := NewIngestor(videos, newMemChunkStore(), &memVectorStore{}, &countingEmbedder{}, Config{})

	err := in.IngestVideos(context.Background(), []*store.Video{{ID: "V1", ChannelID: "C1"}})
	require.NoError(t, err)
	assert.Len(t, videos.saved, 1)
}
