package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.GeneratorHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, "qwen2.5:3b", cfg.GeneratorModel)
	assert.Equal(t, "none", cfg.Token)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()

		assert.NotNil(t, cfg)
		// Should have default values
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.GeneratorHost)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.GeneratorHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithGeneratorHost("http://generate:9090/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://generate:9090/v1", cfg.GeneratorHost)
	})

	t.Run("with custom models", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingModel("text-embedding-3-small"),
			WithGeneratorModel("gpt-4o-mini"),
		)

		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "gpt-4o-mini", cfg.GeneratorModel)
	})

	t.Run("with custom timeout", func(t *testing.T) {
		cfg := NewConfig(WithCallTimeout(5 * time.Second))

		assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithHost("http://custom:8080/v1"),
			WithEmbeddingModel("custom-embed"),
			WithGeneratorModel("custom-generate"),
			WithToken("sk-test"),
		)

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.GeneratorHost)
		assert.Equal(t, "custom-embed", cfg.EmbeddingModel)
		assert.Equal(t, "custom-generate", cfg.GeneratorModel)
		assert.Equal(t, "sk-test", cfg.Token)
	})
}

func TestConfigNormalize(t *testing.T) {
	t.Run("adds v1 suffix when missing", func(t *testing.T) {
		cfg := &Config{
			EmbeddingHost: "http://localhost:11434",
			GeneratorHost: "http://localhost:8080",
		}

		cfg.Normalize()

		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:8080/v1", cfg.GeneratorHost)
	})

	t.Run("strips trailing slash before appending", func(t *testing.T) {
		cfg := &Config{
			EmbeddingHost: "http://localhost:11434/",
			GeneratorHost: "http://localhost:8080/",
		}

		cfg.Normalize()

		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:8080/v1", cfg.GeneratorHost)
	})

	t.Run("leaves canonical hosts unchanged", func(t *testing.T) {
		cfg := &Config{
			EmbeddingHost: "http://localhost:11434/v1",
			GeneratorHost: "http://localhost:8080/v1",
		}

		cfg.Normalize()

		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:8080/v1", cfg.GeneratorHost)
	})

	t.Run("leaves empty hosts empty", func(t *testing.T) {
		cfg := &Config{}

		cfg.Normalize()

		assert.Empty(t, cfg.EmbeddingHost)
		assert.Empty(t, cfg.GeneratorHost)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("default config is valid", func(t *testing.T) {
		cfg := DefaultConfig()

		require.NoError(t, cfg.Validate())
	})

	t.Run("normalizes before validating", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://localhost:11434"))

		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("rejects missing embedding host", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EmbeddingHost = ""

		err := cfg.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingHost")
	})

	t.Run("rejects missing generator host", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.GeneratorHost = ""

		err := cfg.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "GeneratorHost")
	})

	t.Run("rejects missing embedding model", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EmbeddingModel = ""

		err := cfg.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingModel")
	})

	t.Run("rejects missing generator model", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.GeneratorModel = ""

		err := cfg.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "GeneratorModel")
	})

	t.Run("rejects empty token", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Token = ""

		err := cfg.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "Token")
	})

	t.Run("rejects non-positive timeout", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CallTimeout = 0

		err := cfg.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "CallTimeout")
	})
}
