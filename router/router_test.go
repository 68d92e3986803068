package router

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/deepsearch/ai/mock"
	"github.com/poiesic/deepsearch/core"
	"github.com/poiesic/deepsearch/memory"
	"github.com/poiesic/deepsearch/provider"
	"github.com/poiesic/deepsearch/retrieval"
	"github.com/poiesic/deepsearch/storage/badger"
)

// recordingMonitor captures which pipeline hooks fired.
type recordingMonitor struct {
	noopMonitor
	memoryHit    bool
	memoryMiss   bool
	corpusEmpty  bool
	belowQuorum  bool
	corpusUsed   bool
	admitted     bool
	generatedBy  string
	finishSource core.SourceType
}

func (m *recordingMonitor) MemoryHit(_ string, _ float64) { m.memoryHit = true }
func (m *recordingMonitor) MemoryMiss()                   { m.memoryMiss = true }
func (m *recordingMonitor) CorpusEmpty()                  { m.corpusEmpty = true }
func (m *recordingMonitor) BelowQuorum(_ []core.Hit)      { m.belowQuorum = true }
func (m *recordingMonitor) CorpusSelected(_ []core.Hit)   { m.corpusUsed = true }
func (m *recordingMonitor) AnswerGenerated(name string)   { m.generatedBy = name }
func (m *recordingMonitor) MemoryAdmitted(_ core.ID)      { m.admitted = true }
func (m *recordingMonitor) Finish(r *core.RouteResult)    { m.finishSource = r.Source }

type fixture struct {
	router    *Router
	registry  *provider.Registry
	store     *memory.Store
	embedder  *mock.MockEmbedder
	generator *mock.MockGenerator
	seed      func(vectors ...[]float32)
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	chunks, memories, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		chunks.Close()
		memories.Close()
		backend.Close()
	})

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	retriever, err := retrieval.NewRetriever(embedder, chunks)
	require.NoError(t, err)

	generator := mock.NewMockGenerator("primary")
	registry := provider.NewRegistry()
	require.NoError(t, registry.Register("primary", generator))

	store, err := memory.NewStore(embedder, memories)
	require.NoError(t, err)

	router, err := NewRouter(retriever, registry, append([]Option{WithMemory(store)}, opts...)...)
	require.NoError(t, err)

	seed := func(vectors ...[]float32) {
		for i, vector := range vectors {
			_, err := chunks.AddChunks(context.Background(), &core.Chunk{
				Text:       "fragmento del corpus",
				Source:     "docs/guia.md",
				ChunkIndex: i,
				Vector:     vector,
			})
			require.NoError(t, err)
		}
	}

	return &fixture{
		router:    router,
		registry:  registry,
		store:     store,
		embedder:  embedder,
		generator: generator,
		seed:      seed,
	}
}

func TestNewRouter(t *testing.T) {
	f := newFixture(t)

	_, err := NewRouter(nil, f.registry)
	assert.Error(t, err)

	retriever := (*retrieval.Retriever)(nil)
	_, err = NewRouter(retriever, nil)
	assert.Error(t, err)
}

func TestRouteCorpusPath(t *testing.T) {
	f := newFixture(t)
	// Three chunks above the 0.7 threshold: quorum reached
	f.seed([]float32{1, 0, 0}, []float32{0.95, 0.31, 0}, []float32{0.9, 0.43, 0})

	monitor := &recordingMonitor{}
	result := f.router.RouteWithMonitor(context.Background(), "¿Qué dice la guía?", "factual", monitor)

	assert.Equal(t, core.SourceCorpus, result.Source)
	assert.NotEmpty(t, result.Answer)
	assert.Equal(t, "primary", result.Provider)
	assert.Len(t, result.References, 3)
	assert.True(t, monitor.corpusUsed)
	assert.True(t, monitor.memoryMiss)
	assert.Equal(t, "primary", monitor.generatedBy)
}

func TestRouteFallbackOnEmptyCorpus(t *testing.T) {
	f := newFixture(t)

	monitor := &recordingMonitor{}
	result := f.router.RouteWithMonitor(context.Background(), "¿Qué es la fotosíntesis?", "", monitor)

	assert.Equal(t, core.SourceFallback, result.Source)
	assert.True(t, monitor.corpusEmpty)
	assert.False(t, monitor.belowQuorum)
}

func TestRouteFallbackBelowQuorum(t *testing.T) {
	f := newFixture(t)
	// One hit above threshold, min hits is two
	f.seed([]float32{1, 0, 0}, []float32{0, 1, 0})

	monitor := &recordingMonitor{}
	result := f.router.RouteWithMonitor(context.Background(), "¿Qué dice la guía?", "", monitor)

	assert.Equal(t, core.SourceFallback, result.Source)
	assert.True(t, monitor.belowQuorum)
	assert.False(t, monitor.corpusEmpty)
}

func TestRouteProviderFallback(t *testing.T) {
	f := newFixture(t)
	f.generator.Err = errors.New("primary down")

	// "secondary" sorts after "primary", so the failing primary is tried first
	backup := mock.NewMockGenerator("secondary")
	require.NoError(t, f.registry.Register("secondary", backup))

	result := f.router.Route(context.Background(), "¿Qué es la fotosíntesis?", "")

	assert.Equal(t, core.SourceFallback, result.Source)
	assert.Equal(t, "secondary", result.Provider)

	stats := f.registry.Stats()
	assert.Equal(t, int64(1), stats["primary"].Errors)
	assert.Equal(t, int64(1), stats["secondary"].TotalRequests)
}

func TestRouteErrorResultWhenAllProvidersFail(t *testing.T) {
	f := newFixture(t)
	f.generator.Err = errors.New("backend down")

	result := f.router.Route(context.Background(), "¿Qué es la fotosíntesis?", "")

	assert.Equal(t, core.SourceError, result.Source)
	assert.NotEmpty(t, result.Answer)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestRouteEmptyQuery(t *testing.T) {
	f := newFixture(t)

	result := f.router.Route(context.Background(), "   ", "")
	assert.Equal(t, core.SourceError, result.Source)
}

func TestRouteMemoryRoundTrip(t *testing.T) {
	// Without an evaluator the confidence is neutral (0.5); lower the
	// admission bar so the first answer is remembered.
	f := newFixture(t, WithAdmissionThreshold(0.4))

	first := f.router.Route(context.Background(), "¿Qué es la fotosíntesis?", "")
	require.Equal(t, core.SourceFallback, first.Source)
	assert.False(t, first.FromMemory)
	assert.Equal(t, 1, f.generator.CallCount())

	monitor := &recordingMonitor{}
	second := f.router.RouteWithMonitor(context.Background(), "¿Qué es la fotosíntesis?", "", monitor)

	assert.True(t, second.FromMemory)
	assert.Equal(t, first.Answer, second.Answer)
	assert.True(t, monitor.memoryHit)
	// No new generation happened
	assert.Equal(t, 1, f.generator.CallCount())
}

func TestRouteMemoryKeepsAnswerOrigin(t *testing.T) {
	f := newFixture(t, WithAdmissionThreshold(0.4))

	// Empty corpus: the answer comes from the fallback path even though the
	// query carries a real query type.
	first := f.router.Route(context.Background(), "¿Qué es la fotosíntesis?", "factual")
	require.Equal(t, core.SourceFallback, first.Source)

	second := f.router.Route(context.Background(), "¿Qué es la fotosíntesis?", "factual")

	require.True(t, second.FromMemory)
	assert.Equal(t, core.SourceFallback, second.Source)
}

func TestRouteNeutralConfidenceNotAdmitted(t *testing.T) {
	f := newFixture(t) // default admission threshold 0.6

	f.router.Route(context.Background(), "¿Qué es la fotosíntesis?", "")

	stats, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalEntries)
}

func TestRouteRetrievalFailureDegradesToFallback(t *testing.T) {
	f := newFixture(t)
	f.seed([]float32{1, 0, 0}, []float32{1, 0, 0})
	f.embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding service down")
	}

	result := f.router.Route(context.Background(), "¿Qué dice la guía?", "")

	// Retrieval and the memory lookup both fail; the answer still arrives
	assert.Equal(t, core.SourceFallback, result.Source)
	assert.NotEmpty(t, result.Answer)
}

func TestRouteWithSearchReferences(t *testing.T) {
	searched := false
	search := func(ctx context.Context, query string) ([]core.Reference, error) {
		searched = true
		return []core.Reference{{
			Title:   "Fotosíntesis",
			URL:     "https://es.wikipedia.org/wiki/Fotosintesis",
			Snippet: "Proceso de las plantas.",
		}}, nil
	}
	f := newFixture(t, WithSearch(search))

	result := f.router.Route(context.Background(), "¿Qué es la fotosíntesis?", "")

	assert.True(t, searched)
	assert.Equal(t, core.SourceFallback, result.Source)
	require.Len(t, result.References, 1)
	assert.Equal(t, "https://es.wikipedia.org/wiki/Fotosintesis", result.References[0].URL)
}

func TestRouteProviderTimeoutFallsThrough(t *testing.T) {
	f := newFixture(t)
	f.generator.Latency = 50 * time.Millisecond
	f.generator.Err = context.DeadlineExceeded

	fast := mock.NewMockGenerator("turbo")
	require.NoError(t, f.registry.Register("turbo", fast))

	result := f.router.Route(context.Background(), "¿Qué es la fotosíntesis?", "")

	assert.Equal(t, "turbo", result.Provider)
	stats := f.registry.Stats()
	assert.Equal(t, int64(1), stats["primary"].Errors)
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	text := strings.Repeat("áéíóúñ", 50)
	got := truncate(text, snippetLimit)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, snippetLimit+3, utf8.RuneCountInString(got))
	assert.Equal(t, text, truncate(text, 1000))
}
