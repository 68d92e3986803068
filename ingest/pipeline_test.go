package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/deepsearch/ai/mock"
	"github.com/poiesic/deepsearch/core"
	"github.com/poiesic/deepsearch/storage"
	"github.com/poiesic/deepsearch/storage/badger"
)

func TestSplitter(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		s := NewSplitter(300, 50)
		chunks := s.Split("Un texto corto.")
		require.Len(t, chunks, 1)
		assert.Equal(t, "Un texto corto.", chunks[0])
	})

	t.Run("empty text yields nothing", func(t *testing.T) {
		s := NewSplitter(300, 50)
		assert.Empty(t, s.Split("   \n  "))
	})

	t.Run("respects chunk size", func(t *testing.T) {
		s := NewSplitter(100, 20)
		text := strings.Repeat("Una frase con varias palabras dentro. ", 30)
		chunks := s.Split(text)
		require.Greater(t, len(chunks), 1)
		for _, chunk := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 100+21)
		}
	})

	t.Run("prefers paragraph boundaries", func(t *testing.T) {
		s := NewSplitter(40, 0)
		text := "Primer párrafo breve.\n\nSegundo párrafo corto."
		chunks := s.Split(text)
		require.Len(t, chunks, 2)
		assert.Equal(t, "Primer párrafo breve.", chunks[0])
		assert.Equal(t, "Segundo párrafo corto.", chunks[1])
	})

	t.Run("overlap carries context forward", func(t *testing.T) {
		s := NewSplitter(50, 15)
		text := "La primera frase termina aquí. La segunda frase continúa el texto. La tercera cierra."
		chunks := s.Split(text)
		require.Greater(t, len(chunks), 1)

		// The tail of each chunk reappears at the start of the next
		for i := 1; i < len(chunks); i++ {
			prev := []rune(chunks[i-1])
			tail := strings.TrimSpace(string(prev[max(0, len(prev)-15):]))
			assert.True(t, strings.HasPrefix(chunks[i], tail),
				"chunk %d should start with %q, got %q", i, tail, chunks[i])
		}
	})

	t.Run("hard cut never splits runes", func(t *testing.T) {
		s := NewSplitter(10, 0)
		text := strings.Repeat("áéíóúñ", 20)
		for _, chunk := range s.Split(text) {
			assert.True(t, utf8.ValidString(chunk))
		}
	})
}

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, storage.ChunkRepository, *mock.MockEmbedder) {
	t.Helper()

	chunks, memories, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		chunks.Close()
		memories.Close()
		backend.Close()
	})

	embedder := mock.NewMockEmbedder()
	pipeline, err := NewPipeline(chunks, embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	return pipeline, chunks, embedder
}

func TestNewPipeline(t *testing.T) {
	chunks, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	_, err = NewPipeline(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewPipeline(chunks, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewPipeline(chunks, mock.NewMockEmbedder(), WithBatchSize(0))
	assert.Error(t, err)
}

func TestIngest(t *testing.T) {
	t.Run("splits, embeds and indexes", func(t *testing.T) {
		pipeline, chunks, _ := newTestPipeline(t, WithChunking(80, 10), WithBatchSize(4))

		text := strings.Repeat("La fotosíntesis convierte luz en energía química. ", 12)
		report, err := pipeline.Ingest(context.Background(), "biologia.md", text)
		require.NoError(t, err)

		assert.Equal(t, "biologia.md", report.Source)
		assert.Greater(t, report.ChunksCreated, 1)
		assert.Zero(t, report.BatchesFailed)

		count, err := chunks.CountChunks(context.Background())
		require.NoError(t, err)
		assert.Equal(t, report.ChunksCreated, count)

		// Indexed chunks carry vectors and the source
		neighbors, err := chunks.NearestChunks(context.Background(), mock.DeterministicVector("x", mock.DefaultDim), 1)
		require.NoError(t, err)
		require.NotEmpty(t, neighbors)
		assert.Equal(t, "biologia.md", neighbors[0].Chunk.Source)
		assert.NotEmpty(t, neighbors[0].Chunk.Vector)
	})

	t.Run("empty text rejected", func(t *testing.T) {
		pipeline, _, _ := newTestPipeline(t)
		_, err := pipeline.Ingest(context.Background(), "vacio.md", "  \n ")
		assert.ErrorIs(t, err, core.ErrEmptyText)
	})

	t.Run("missing source rejected", func(t *testing.T) {
		pipeline, _, _ := newTestPipeline(t)
		_, err := pipeline.Ingest(context.Background(), "", "algún texto")
		assert.ErrorIs(t, err, core.ErrInvalidChunk)
	})

	t.Run("embedding failure fails the run", func(t *testing.T) {
		pipeline, chunks, embedder := newTestPipeline(t)
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("embedding service down")
		}

		report, err := pipeline.Ingest(context.Background(), "doc.md", "Texto breve para un solo fragmento.")
		assert.ErrorIs(t, err, ErrIngestFailed)
		assert.Equal(t, 1, report.BatchesFailed)

		count, err := chunks.CountChunks(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
