// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/deepsearch/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat completion APIs.
type Generator struct {
	client  *openai.LLM
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.GeneratorModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:  client,
		model:   config.GeneratorModel,
		timeout: config.CallTimeout,
		logger:  slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Name returns the model identifier this generator calls.
func (g *Generator) Name() string {
	return g.model
}

// Generate produces a completion for the prompt at the given sampling
// temperature. Calls are bounded by the configured CallTimeout; an expired
// deadline is reported as ai.ErrTimeout so callers can fall back.
func (g *Generator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	g.logger.Debug("generating completion", "model", g.model, "prompt_length", len(prompt))

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := g.client.GenerateContent(ctx, content,
		llms.WithTemperature(temperature),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			g.logger.Warn("completion timed out", "model", g.model, "timeout", g.timeout)
			return "", fmt.Errorf("%w: %w", ai.ErrTimeout, err)
		}
		g.logger.Error("completion failed", "model", g.model, "err", err)
		return "", fmt.Errorf("generating completion with %s: %w", g.model, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: model %s", ai.ErrEmptyCompletion, g.model)
	}

	answer := strings.TrimSpace(resp.Choices[0].Content)
	if answer == "" {
		return "", fmt.Errorf("%w: model %s", ai.ErrEmptyCompletion, g.model)
	}

	return answer, nil
}
