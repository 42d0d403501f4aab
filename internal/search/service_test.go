package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wassim249/YT-Navigator/internal/chunk"
	"github.com/wassim249/YT-Navigator/internal/rerank"
	"github.com/wassim249/YT-Navigator/internal/store"
)

// fakeEmbedder returns a fixed vector for any input.
type fakeEmbedder struct {
	failErr error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	return []float32{1, 0, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                { return 4 }
func (f *fakeEmbedder) ModelName() string              { return "fake" }
func (f *fakeEmbedder) Available(context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                   { return nil }

// fakeVectorStore serves configured hits for Search; it can error or panic.
type fakeVectorStore struct {
	hits    []store.VectorHit
	failErr error
	panics  bool
}

func (f *fakeVectorStore) Add(context.Context, string, []chunk.Chunk, [][]float32) error { return nil }

func (f *fakeVectorStore) Search(context.Context, string, []float32, int) ([]store.VectorHit, error) {
	if f.panics {
		panic("vector index corrupted")
	}
	if f.failErr != nil {
		return nil, f.failErr
	}
	return f.hits, nil
}

func (f *fakeVectorStore) DeleteByVideo(context.Context, string, string) error { return nil }
func (f *fakeVectorStore) Count(string) int                                    { return len(f.hits) }
func (f *fakeVectorStore) Close() error                                        { return nil }

// fakeKeywordSearcher serves configured chunks; it can error or panic.
type fakeKeywordSearcher struct {
	chunks  []chunk.Chunk
	failErr error
	panics  bool
}

func (f *fakeKeywordSearcher) SearchKeyword(context.Context, string, string, int) ([]chunk.Chunk, error) {
	if f.panics {
		panic("keyword index corrupted")
	}
	if f.failErr != nil {
		return nil, f.failErr
	}
	return f.chunks, nil
}

// lengthEncoder scores documents by text length.
type lengthEncoder struct{}

func (lengthEncoder) ScorePairs(_ context.Context, _ string, docs []string) ([]float64, error) {
	scores := make([]float64, len(docs))
	for i, d := range docs {
		scores[i] = float64(len(d))
	}
	return scores, nil
}

func (lengthEncoder) ModelName() string              { return "length" }
func (lengthEncoder) Available(context.Context) bool { return true }
func (lengthEncoder) Close() error                   { return nil }

func workingReranker() *rerank.Reranker {
	handle := rerank.NewHandle(func(context.Context) (rerank.CrossEncoder, error) {
		return lengthEncoder{}, nil
	})
	return rerank.NewReranker(handle, rerank.DefaultBatchSize)
}

func brokenReranker() *rerank.Reranker {
	handle := rerank.NewHandle(func(context.Context) (rerank.CrossEncoder, error) {
		return nil, fmt.Errorf("model load failed")
	})
	return rerank.NewReranker(handle, rerank.DefaultBatchSize)
}

func newTestService(vectors store.VectorStore, keywords store.KeywordSearcher, videos store.VideoStore, reranker *rerank.Reranker) *SearchService {
	return NewService(&fakeEmbedder{}, vectors, keywords, videos, reranker, ServiceConfig{})
}

func TestSearch_EndToEnd(t *testing.T) {
	// Dense search matches chunks in V1 and V2; keyword search alone
	// finds a chunk in V3.
	vectors := &fakeVectorStore{hits: []store.VectorHit{
		{Chunk: testChunk("tutorial intro with a longer explanation", "V1"), Score: 0.9},
		{Chunk: testChunk("tutorial part two", "V2"), Score: 0.8},
	}}
	keywords := &fakeKeywordSearcher{chunks: []chunk.Chunk{
		testChunk("short intro", "V3"),
	}}
	videoStore := &fakeVideoStore{videos: testVideos("V1", "V2", "V3")}

	svc := newTestService(vectors, keywords, videoStore, workingReranker())
	result := svc.Search(context.Background(), "tutorial intro", "C1")

	require.NotEmpty(t, result.Chunks)
	require.NotEmpty(t, result.Videos)
	assert.LessOrEqual(t, len(result.Videos), 5)

	kept := make(map[string]bool)
	for _, v := range result.Videos {
		assert.Contains(t, []string{"V1", "V2", "V3"}, v.VideoID)
		kept[v.VideoID] = true
	}
	for _, c := range result.Chunks {
		assert.True(t, kept[c.VideoID])
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 100.0)
	}
	for i := 1; i < len(result.Videos); i++ {
		assert.GreaterOrEqual(t, result.Videos[i-1].AvgScore, result.Videos[i].AvgScore)
	}
}

func TestSearch_RerankerFailureFallsBack(t *testing.T) {
	vectors := &fakeVectorStore{hits: []store.VectorHit{
		{Chunk: testChunk("alpha", "V1"), Score: 0.9},
		{Chunk: testChunk("beta", "V2"), Score: 0.8},
	}}
	keywords := &fakeKeywordSearcher{chunks: []chunk.Chunk{
		testChunk("gamma", "V1"),
	}}
	videoStore := &fakeVideoStore{videos: testVideos("V1", "V2")}

	svc := newTestService(vectors, keywords, videoStore, brokenReranker())
	result := svc.Search(context.Background(), "anything", "C1")

	// Fallback keeps candidates at a uniform score, which standardizes
	// to the neutral default.
	require.NotEmpty(t, result.Chunks)
	require.NotEmpty(t, result.Videos)
	for _, c := range result.Chunks {
		assert.Equal(t, NeutralScore, c.Score)
	}
}

func TestSearch_FallbackCapsCandidates(t *testing.T) {
	hits := make([]store.VectorHit, 15)
	ids := make([]string, 15)
	for i := range hits {
		id := fmt.Sprintf("V%d", i)
		ids[i] = id
		hits[i] = store.VectorHit{Chunk: testChunk(fmt.Sprintf("text %d", i), id)}
	}
	vectors := &fakeVectorStore{hits: hits}
	keywords := &fakeKeywordSearcher{}
	videoStore := &fakeVideoStore{videos: testVideos(ids...)}

	svc := newTestService(vectors, keywords, videoStore, brokenReranker())
	result := svc.Search(context.Background(), "anything", "C1")

	// 15 candidates capped to 10 by the fallback, then at most 5 videos
	// retained, one chunk each.
	assert.LessOrEqual(t, len(result.Chunks), 5)
	assert.LessOrEqual(t, len(result.Videos), 5)
}

func TestSearch_ZeroHitsReturnsEmpty(t *testing.T) {
	svc := newTestService(
		&fakeVectorStore{},
		&fakeKeywordSearcher{},
		&fakeVideoStore{videos: testVideos("V1")},
		workingReranker(),
	)

	result := svc.Search(context.Background(), "no matches", "C1")

	assert.Empty(t, result.Chunks)
	assert.Empty(t, result.Videos)
}

func TestSearch_AllOrphanedReturnsEmpty(t *testing.T) {
	vectors := &fakeVectorStore{hits: []store.VectorHit{
		{Chunk: testChunk("alpha", "DELETED1")},
	}}
	keywords := &fakeKeywordSearcher{chunks: []chunk.Chunk{
		testChunk("beta", "DELETED2"),
	}}

	svc := newTestService(vectors, keywords, &fakeVideoStore{videos: map[string]*store.Video{}}, workingReranker())
	result := svc.Search(context.Background(), "anything", "C1")

	assert.Empty(t, result.Chunks)
	assert.Empty(t, result.Videos)
}

func TestSearch_DensePathFailureDegradesToSparse(t *testing.T) {
	vectors := &fakeVectorStore{failErr: fmt.Errorf("index unreachable")}
	keywords := &fakeKeywordSearcher{chunks: []chunk.Chunk{
		testChunk("found via keywords", "V1"),
	}}
	videoStore := &fakeVideoStore{videos: testVideos("V1")}

	svc := newTestService(vectors, keywords, videoStore, workingReranker())
	result := svc.Search(context.Background(), "anything", "C1")

	require.NotEmpty(t, result.Chunks)
	assert.Equal(t, "V1", result.Chunks[0].VideoID)
}

func TestSearch_EmbeddingFailureDegradesToSparse(t *testing.T) {
	vectors := &fakeVectorStore{hits: []store.VectorHit{
		{Chunk: testChunk("never reached", "V2")},
	}}
	keywords := &fakeKeywordSearcher{chunks: []chunk.Chunk{
		testChunk("found via keywords", "V1"),
	}}
	videoStore := &fakeVideoStore{videos: testVideos("V1", "V2")}

	svc := NewService(
		&fakeEmbedder{failErr: fmt.Errorf("ollama down")},
		vectors, keywords, videoStore, workingReranker(), ServiceConfig{})
	result := svc.Search(context.Background(), "anything", "C1")

	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "V1", result.Chunks[0].VideoID)
}

func TestSearch_EnrichmentFailureReturnsEmpty(t *testing.T) {
	vectors := &fakeVectorStore{hits: []store.VectorHit{
		{Chunk: testChunk("alpha", "V1")},
	}}
	videoStore := &fakeVideoStore{failErr: fmt.Errorf("db down")}

	svc := newTestService(vectors, &fakeKeywordSearcher{}, videoStore, workingReranker())
	result := svc.Search(context.Background(), "anything", "C1")

	assert.Empty(t, result.Chunks)
	assert.Empty(t, result.Videos)
}

func TestSearch_SparsePanicDegradesToDense(t *testing.T) {
	vectors := &fakeVectorStore{hits: []store.VectorHit{
		{Chunk: testChunk("alpha", "V1")},
	}}
	keywords := &fakeKeywordSearcher{panics: true}
	videoStore := &fakeVideoStore{videos: testVideos("V1")}

	svc := newTestService(vectors, keywords, videoStore, workingReranker())

	var result QueryResult
	assert.NotPanics(t, func() {
		result = svc.Search(context.Background(), "anything", "C1")
	})
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, "V1", result.Chunks[0].VideoID)
}

func TestSearch_PanicRecoveredToEmptyResult(t *testing.T) {
	vectors := &fakeVectorStore{panics: true}
	keywords := &fakeKeywordSearcher{panics: true}
	videoStore := &fakeVideoStore{videos: testVideos("V1")}

	svc := newTestService(vectors, keywords, videoStore, workingReranker())

	var result QueryResult
	assert.NotPanics(t, func() {
		result = svc.Search(context.Background(), "anything", "C1")
	})
	assert.Empty(t, result.Chunks)
	assert.Empty(t, result.Videos)
}

func TestSearch_EmptyInputsReturnEmpty(t *testing.T) {
	svc := newTestService(&fakeVectorStore{}, &fakeKeywordSearcher{}, &fakeVideoStore{}, workingReranker())

	result := svc.Search(context.Background(), "", "C1")
	assert.Empty(t, result.Chunks)

	result = svc.Search(context.Background(), "query", "")
	assert.Empty(t, result.Chunks)
}
