package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/deepsearch/ai/mock"
)

func TestRegister(t *testing.T) {
	t.Run("registers providers", func(t *testing.T) {
		reg := NewRegistry()

		require.NoError(t, reg.Register("primary", mock.NewMockGenerator("primary")))
		require.NoError(t, reg.Register("backup", mock.NewMockGenerator("backup")))

		assert.Len(t, reg.Names(), 2)
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		reg := NewRegistry()

		require.NoError(t, reg.Register("primary", mock.NewMockGenerator("primary")))
		err := reg.Register("primary", mock.NewMockGenerator("primary"))

		assert.ErrorIs(t, err, ErrDuplicateProvider)
	})

	t.Run("rejects empty name", func(t *testing.T) {
		reg := NewRegistry()

		assert.Error(t, reg.Register("", mock.NewMockGenerator("x")))
	})
}

func TestUnregister(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("primary", mock.NewMockGenerator("primary")))

	require.NoError(t, reg.Unregister("primary"))
	assert.ErrorIs(t, reg.Unregister("primary"), ErrUnknownProvider)
}

func TestScore(t *testing.T) {
	t.Run("fresh provider scores full marks", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register("fresh", mock.NewMockGenerator("fresh")))

		score, err := reg.Score("fresh")
		require.NoError(t, err)
		assert.Equal(t, 1.0, score)
	})

	t.Run("failures lower the score", func(t *testing.T) {
		reg := NewRegistry()
		gen := mock.NewMockGenerator("flaky")
		require.NoError(t, reg.Register("flaky", gen))

		ctx := context.Background()

		// One success, one failure: success rate 0.5
		_, err := reg.Generate(ctx, "prompt", 0.7, "")
		require.NoError(t, err)

		gen.Err = errors.New("boom")
		_, err = reg.Generate(ctx, "prompt", 0.7, "")
		require.Error(t, err)

		score, err := reg.Score("flaky")
		require.NoError(t, err)
		// 0.7*0.5 + 0.3*speed, with speed close to 1 for fast mock calls
		assert.InDelta(t, 0.65, score, 0.02)
	})

	t.Run("unknown provider", func(t *testing.T) {
		reg := NewRegistry()

		_, err := reg.Score("ghost")
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})
}

func TestGenerate(t *testing.T) {
	t.Run("no providers", func(t *testing.T) {
		reg := NewRegistry()

		_, err := reg.Generate(context.Background(), "prompt", 0.7, "")
		assert.ErrorIs(t, err, ErrNoProviders)
	})

	t.Run("uses single provider", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register("only", mock.NewMockGenerator("only")))

		completion, err := reg.Generate(context.Background(), "prompt", 0.7, "")
		require.NoError(t, err)

		assert.Equal(t, "only", completion.Provider)
		assert.Contains(t, completion.Answer, "prompt")
	})

	t.Run("falls back when preferred fails", func(t *testing.T) {
		reg := NewRegistry()

		broken := mock.NewMockGenerator("broken")
		broken.Err = errors.New("model unavailable")
		require.NoError(t, reg.Register("broken", broken))
		require.NoError(t, reg.Register("healthy", mock.NewMockGenerator("healthy")))

		completion, err := reg.Generate(context.Background(), "prompt", 0.7, "broken")
		require.NoError(t, err)

		assert.Equal(t, "healthy", completion.Provider)
		assert.Equal(t, 1, broken.CallCount())
	})

	t.Run("all providers failed", func(t *testing.T) {
		reg := NewRegistry()

		a := mock.NewMockGenerator("a")
		a.Err = errors.New("down")
		b := mock.NewMockGenerator("b")
		b.Err = errors.New("also down")
		require.NoError(t, reg.Register("a", a))
		require.NoError(t, reg.Register("b", b))

		_, err := reg.Generate(context.Background(), "prompt", 0.7, "")

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAllProvidersFailed)
		assert.Equal(t, 1, a.CallCount())
		assert.Equal(t, 1, b.CallCount())
	})

	t.Run("records statistics", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register("tracked", mock.NewMockGenerator("tracked")))

		ctx := context.Background()
		for i := 0; i < 3; i++ {
			_, err := reg.Generate(ctx, "prompt", 0.7, "")
			require.NoError(t, err)
		}

		stats := reg.Stats()["tracked"]
		assert.Equal(t, int64(3), stats.TotalRequests)
		assert.Equal(t, int64(0), stats.Errors)
		assert.Equal(t, 1.0, stats.SuccessRate)
		assert.GreaterOrEqual(t, stats.AvgLatency, time.Duration(0))
	})

	t.Run("degraded provider loses its ranking", func(t *testing.T) {
		reg := NewRegistry()

		flaky := mock.NewMockGenerator("flaky")
		require.NoError(t, reg.Register("flaky", flaky))
		require.NoError(t, reg.Register("steady", mock.NewMockGenerator("steady")))

		ctx := context.Background()

		// Drive flaky's success rate down
		flaky.Err = errors.New("boom")
		for i := 0; i < 3; i++ {
			_, _ = reg.Generate(ctx, "prompt", 0.7, "flaky")
		}
		flaky.Err = nil

		// With no preference, steady should now outrank flaky
		names := reg.Names()
		assert.Equal(t, "steady", names[0])
	})
}

func TestCompete(t *testing.T) {
	t.Run("fastest provider wins", func(t *testing.T) {
		reg := NewRegistry()

		slow := mock.NewMockGenerator("slow")
		slow.Latency = 200 * time.Millisecond
		fast := mock.NewMockGenerator("fast")
		fast.Latency = 10 * time.Millisecond

		require.NoError(t, reg.Register("slow", slow))
		require.NoError(t, reg.Register("fast", fast))

		completion, err := reg.Compete(context.Background(), "prompt", 0.7)
		require.NoError(t, err)

		assert.Equal(t, "fast", completion.Provider)
	})

	t.Run("failure does not block a slower success", func(t *testing.T) {
		reg := NewRegistry()

		broken := mock.NewMockGenerator("broken")
		broken.Err = errors.New("down")
		working := mock.NewMockGenerator("working")
		working.Latency = 20 * time.Millisecond

		require.NoError(t, reg.Register("broken", broken))
		require.NoError(t, reg.Register("working", working))

		completion, err := reg.Compete(context.Background(), "prompt", 0.7)
		require.NoError(t, err)

		assert.Equal(t, "working", completion.Provider)
	})

	t.Run("higher score beats a faster finisher", func(t *testing.T) {
		reg := NewRegistry()

		hare := mock.NewMockGenerator("hare")
		tortoise := mock.NewMockGenerator("tortoise")
		require.NoError(t, reg.Register("hare", hare))
		require.NoError(t, reg.Register("tortoise", tortoise))

		// Give the hare a failure on record so its score drops
		hare.Err = errors.New("down")
		_, err := reg.Generate(context.Background(), "warmup", 0.7, "hare")
		require.NoError(t, err)
		hare.Err = nil

		// The hare answers first, but the tortoise's clean history wins
		tortoise.Latency = 50 * time.Millisecond

		completion, err := reg.Compete(context.Background(), "prompt", 0.7)
		require.NoError(t, err)

		assert.Equal(t, "tortoise", completion.Provider)
	})

	t.Run("winner carries a stats snapshot", func(t *testing.T) {
		reg := NewRegistry()

		require.NoError(t, reg.Register("a", mock.NewMockGenerator("a")))
		require.NoError(t, reg.Register("b", mock.NewMockGenerator("b")))

		completion, err := reg.Compete(context.Background(), "prompt", 0.7)
		require.NoError(t, err)

		require.Contains(t, completion.Stats, "a")
		require.Contains(t, completion.Stats, "b")
		assert.Equal(t, int64(1), completion.Stats["a"].TotalRequests)
		assert.Equal(t, int64(1), completion.Stats["b"].TotalRequests)
	})

	t.Run("all fail", func(t *testing.T) {
		reg := NewRegistry()

		a := mock.NewMockGenerator("a")
		a.Err = errors.New("down")
		require.NoError(t, reg.Register("a", a))

		_, err := reg.Compete(context.Background(), "prompt", 0.7)
		assert.ErrorIs(t, err, ErrAllProvidersFailed)
	})

	t.Run("no providers", func(t *testing.T) {
		reg := NewRegistry()

		_, err := reg.Compete(context.Background(), "prompt", 0.7)
		assert.ErrorIs(t, err, ErrNoProviders)
	})
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("shared", mock.NewMockGenerator("shared")))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = reg.Generate(context.Background(), "prompt", 0.7, "")
				_ = reg.Stats()
				_ = reg.Names()
			}
		}()
	}
	wg.Wait()

	stats := reg.Stats()["shared"]
	assert.Equal(t, int64(16*20), stats.TotalRequests)
	assert.Equal(t, 1.0, stats.SuccessRate)
}
