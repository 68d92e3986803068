package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/deepsearch/ai/mock"
	"github.com/poiesic/deepsearch/core"
	"github.com/poiesic/deepsearch/storage/badger"
)

func newTestRetriever(t *testing.T, opts ...Option) (*Retriever, *mock.MockEmbedder, func(vectors ...[]float32)) {
	t.Helper()

	chunks, memories, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		chunks.Close()
		memories.Close()
		backend.Close()
	})

	embedder := mock.NewMockEmbedder()
	// Queries embed to the x axis unless a test overrides this
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	retriever, err := NewRetriever(embedder, chunks, opts...)
	require.NoError(t, err)

	seed := func(vectors ...[]float32) {
		for i, vector := range vectors {
			chunk := &core.Chunk{
				Text:       "chunk text",
				Source:     "seed.md",
				ChunkIndex: i,
				Vector:     vector,
			}
			_, err := chunks.AddChunks(context.Background(), chunk)
			require.NoError(t, err)
		}
	}

	return retriever, embedder, seed
}

func TestNewRetriever(t *testing.T) {
	t.Run("requires embedder", func(t *testing.T) {
		chunks, memories, backend, err := badger.NewMemoryRepositories()
		require.NoError(t, err)
		defer func() { chunks.Close(); memories.Close(); backend.Close() }()

		_, err = NewRetriever(nil, chunks)
		assert.Error(t, err)
	})

	t.Run("rejects threshold outside unit range", func(t *testing.T) {
		chunks, memories, backend, err := badger.NewMemoryRepositories()
		require.NoError(t, err)
		defer func() { chunks.Close(); memories.Close(); backend.Close() }()

		_, err = NewRetriever(mock.NewMockEmbedder(), chunks, WithSimilarityThreshold(1.5))
		assert.Error(t, err)
	})

	t.Run("rejects max hits below min hits", func(t *testing.T) {
		chunks, memories, backend, err := badger.NewMemoryRepositories()
		require.NoError(t, err)
		defer func() { chunks.Close(); memories.Close(); backend.Close() }()

		_, err = NewRetriever(mock.NewMockEmbedder(), chunks, WithMinHits(4), WithMaxHits(2))
		assert.Error(t, err)
	})
}

func TestRetrieveEmptyCorpusShortCircuits(t *testing.T) {
	retriever, embedder, _ := newTestRetriever(t)

	decision, err := retriever.Retrieve(context.Background(), "anything")
	require.NoError(t, err)

	assert.False(t, decision.UseCorpus)
	assert.Empty(t, decision.Hits)
	// The embedder must never be consulted for an empty corpus
	assert.Zero(t, embedder.CallCount())
}

func TestRetrieveQuorumReached(t *testing.T) {
	retriever, _, seed := newTestRetriever(t)

	// Three chunks near the query axis, one orthogonal
	seed(
		[]float32{1, 0, 0},
		[]float32{0.95, 0.05, 0},
		[]float32{0.9, 0.1, 0},
		[]float32{0, 1, 0},
	)

	decision, err := retriever.Retrieve(context.Background(), "aligned query")
	require.NoError(t, err)

	assert.True(t, decision.UseCorpus)
	require.Len(t, decision.Hits, 3)

	// Hits are ranked by descending similarity starting at 1
	for i, hit := range decision.Hits {
		assert.Equal(t, i+1, hit.Rank)
		assert.GreaterOrEqual(t, hit.Similarity, DefaultSimilarityThreshold)
		assert.LessOrEqual(t, hit.Similarity, 1.0)
	}
	assert.InDelta(t, 1.0, decision.Hits[0].Similarity, 1e-6)
}

func TestRetrieveBelowQuorum(t *testing.T) {
	retriever, _, seed := newTestRetriever(t)

	// Only one relevant chunk: below the default quorum of two
	seed(
		[]float32{1, 0, 0},
		[]float32{0, 1, 0},
		[]float32{0, 0, 1},
	)

	decision, err := retriever.Retrieve(context.Background(), "partially covered query")
	require.NoError(t, err)

	assert.False(t, decision.UseCorpus)
	// Near-misses are still reported
	assert.Len(t, decision.Hits, 1)
}

func TestRetrieveEmptyQuery(t *testing.T) {
	retriever, _, _ := newTestRetriever(t)

	_, err := retriever.Retrieve(context.Background(), "   ")
	assert.ErrorIs(t, err, core.ErrEmptyQuery)
}

func TestRetrieveEmbedderError(t *testing.T) {
	retriever, embedder, seed := newTestRetriever(t)
	seed([]float32{1, 0, 0}, []float32{1, 0, 0})

	boom := errors.New("embedding service down")
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	}

	_, err := retriever.Retrieve(context.Background(), "query")
	assert.ErrorIs(t, err, boom)
}

func TestRetrieveCustomQuorum(t *testing.T) {
	retriever, _, seed := newTestRetriever(t, WithMinHits(1), WithSimilarityThreshold(0.5))

	seed([]float32{0.8, 0.6, 0})

	decision, err := retriever.Retrieve(context.Background(), "query")
	require.NoError(t, err)
	assert.True(t, decision.UseCorpus)
	assert.Len(t, decision.Hits, 1)
}
