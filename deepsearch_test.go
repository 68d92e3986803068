package deepsearch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/deepsearch/ai/mock"
	"github.com/poiesic/deepsearch/core"
	"github.com/poiesic/deepsearch/evaluate"
	"github.com/poiesic/deepsearch/router"
)

func newTestSystem(t *testing.T, opts ...SystemOption) *System {
	t.Helper()

	opts = append([]SystemOption{
		WithInMemoryStorage(),
		WithAIProvider(mock.NewMockProvider()),
	}, opts...)

	system, err := Open("", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { system.Close() })
	return system
}

func TestOpen(t *testing.T) {
	t.Run("creates system on disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "deepsearch_db")
		system, err := Open(path, WithAIProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		require.NotNil(t, system)
		defer system.Close()

		assert.NotNil(t, system.Memory())
		assert.NotNil(t, system.Providers())
	})

	t.Run("registers the model backend", func(t *testing.T) {
		system := newTestSystem(t)
		assert.NotEmpty(t, system.Providers().Names())
	})

	t.Run("web search adds a second backend", func(t *testing.T) {
		system := newTestSystem(t, WithWebSearch())
		assert.Len(t, system.Providers().Names(), 2)
		assert.Contains(t, system.Providers().Names(), "websearch")
	})
}

func TestSystemEndToEnd(t *testing.T) {
	system := newTestSystem(t)
	ctx := context.Background()

	// Ingest a small corpus
	pipeline, err := system.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	report, err := pipeline.Ingest(ctx, "guia.md",
		"La fotosíntesis convierte la luz solar en energía química dentro de las plantas. "+
			"El proceso ocurre en los cloroplastos y produce oxígeno como subproducto.")
	require.NoError(t, err)
	require.Greater(t, report.ChunksCreated, 0)

	stats, err := system.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.ChunksCreated, stats.CorpusChunks)

	// Route a query end to end; the mock provider always answers
	result := system.Route(ctx, "¿Qué es la fotosíntesis?", "factual")
	require.NotNil(t, result)
	assert.NotEqual(t, core.SourceError, result.Source)
	assert.NotEmpty(t, result.Answer)
}

func TestSystemRouteWithMonitor(t *testing.T) {
	system := newTestSystem(t)

	var finished bool
	monitor := &finishMonitor{onFinish: func(*core.RouteResult) { finished = true }}
	result := system.RouteWithMonitor(context.Background(), "¿Qué es IA?", "", monitor)

	require.NotNil(t, result)
	assert.True(t, finished)
}

// finishMonitor observes only the end of a route.
type finishMonitor struct {
	onFinish func(*core.RouteResult)
}

var _ router.RouteMonitor = (*finishMonitor)(nil)

func (m *finishMonitor) Start(string)                                {}
func (m *finishMonitor) MemoryHit(string, float64)                   {}
func (m *finishMonitor) MemoryMiss()                                 {}
func (m *finishMonitor) CorpusEmpty()                                {}
func (m *finishMonitor) BelowQuorum([]core.Hit)                      {}
func (m *finishMonitor) CorpusSelected([]core.Hit)                   {}
func (m *finishMonitor) RetrievalFailed(error)                       {}
func (m *finishMonitor) QueryRewritten([]core.RewriteResult, string) {}
func (m *finishMonitor) AnswerGenerated(string)                      {}
func (m *finishMonitor) Evaluated(*core.EvaluationResult)            {}
func (m *finishMonitor) MemoryAdmitted(core.ID)                      {}
func (m *finishMonitor) Finish(r *core.RouteResult)                  { m.onFinish(r) }

func TestSystemEvaluate(t *testing.T) {
	system := newTestSystem(t)

	result, err := system.Evaluate(evaluate.Input{
		Query:    "¿Qué es IA?",
		Response: "La IA es una rama de la informática.",
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.OverallScore, 0.0)
	assert.LessOrEqual(t, result.OverallScore, 1.0)
}

func TestSystemClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deepsearch_db")
	system, err := Open(path, WithAIProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	assert.NoError(t, system.Close())
}
