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


package provider

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/deepsearch/ai"
	"github.com/poiesic/deepsearch/core"
)

const (
	// successWeight and speedWeight blend reliability and latency into one
	// ranking score.
	successWeight = 0.7
	speedWeight   = 0.3

	// maxAcceptableLatency is the average latency at which a provider's
	// speed score reaches zero.
	maxAcceptableLatency = 10 * time.Second
)

// Completion is a generated answer together with the provider that produced it.
// Stats is populated only by Compete and holds a post-race snapshot of every
// provider's counters.
type Completion struct {
	Answer   string
	Provider string
	Latency  time.Duration
	Stats    map[string]core.ProviderStats
}

// providerEntry pairs a generator with its mutable call statistics.
type providerEntry struct {
	name      string
	generator ai.Generator
	stats     core.ProviderStats
}

// score ranks the provider by blending success rate and speed.
// Providers with no history score a full 1.0, so new backends get tried.
func (e *providerEntry) score() float64 {
	if e.stats.TotalRequests == 0 {
		return 1.0
	}
	speedScore := 1.0 - e.stats.AvgLatency.Seconds()/maxAcceptableLatency.Seconds()
	if speedScore < 0 {
		speedScore = 0
	}
	return successWeight*e.stats.SuccessRate + speedWeight*speedScore
}

// Registry manages a set of named generators and routes calls to the one
// most likely to answer quickly. Failures fall through to the next-best
// provider until one succeeds or all are exhausted.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*providerEntry
	logger  *slog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*providerEntry),
		logger:  slog.Default().With("component", "provider-registry"),
	}
}

// Register adds a generator under the given name.
// Returns ErrDuplicateProvider if the name is taken.
func (r *Registry) Register(name string, generator ai.Generator) error {
	if name == "" {
		return fmt.Errorf("provider: name is required")
	}
	if generator == nil {
		return fmt.Errorf("provider: generator is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, name)
	}
	r.entries[name] = &providerEntry{name: name, generator: generator}
	r.logger.Info("registered provider", "name", name)
	return nil
}

// Unregister removes a provider by name.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	delete(r.entries, name)
	return nil
}

// Names returns the registered provider names in ranking order, best first.
func (r *Registry) Names() []string {
	ranked := r.ranked("")
	names := make([]string, len(ranked))
	for i, e := range ranked {
		names[i] = e.name
	}
	return names
}

// Stats returns a snapshot of per-provider call statistics.
func (r *Registry) Stats() map[string]core.ProviderStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]core.ProviderStats, len(r.entries))
	for name, e := range r.entries {
		snapshot[name] = e.stats
	}
	return snapshot
}

// Score returns the current ranking score for a provider.
func (r *Registry) Score(name string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[name]
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return e.score(), nil
}

// Generate produces a completion for the prompt, trying providers in ranking
// order. When preferred names a registered provider, it is tried first
// regardless of its score. Each failure is recorded and the next candidate is
// tried; only when every provider has failed does Generate return an error
// wrapping ErrAllProvidersFailed.
func (r *Registry) Generate(ctx context.Context, prompt string, temperature float64, preferred string) (*Completion, error) {
	candidates := r.ranked(preferred)
	if len(candidates) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for _, e := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		answer, err := e.generator.Generate(ctx, prompt, temperature)
		latency := time.Since(start)

		r.record(e.name, latency, err)

		if err != nil {
			r.logger.Warn("provider failed, falling back",
				"provider", e.name,
				"latency", latency,
				"err", err)
			lastErr = fmt.Errorf("%s: %w", e.name, err)
			continue
		}

		return &Completion{
			Answer:   answer,
			Provider: e.name,
			Latency:  latency,
		}, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}

// Compete runs the prompt against every registered provider concurrently,
// waits for all of them, and returns the answer of the best-scoring provider
// that succeeded. Latency breaks score ties. Statistics are recorded for
// every provider, and the returned completion carries a snapshot of them.
func (r *Registry) Compete(ctx context.Context, prompt string, temperature float64) (*Completion, error) {
	candidates := r.ranked("")
	if len(candidates) == 0 {
		return nil, ErrNoProviders
	}

	type outcome struct {
		name       string
		completion *Completion
		err        error
	}
	results := make(chan outcome, len(candidates))

	for _, e := range candidates {
		go func(e *providerEntry) {
			start := time.Now()
			answer, err := e.generator.Generate(ctx, prompt, temperature)
			latency := time.Since(start)

			// External cancellation is not a failure worth penalizing.
			if err != nil && ctx.Err() != nil {
				results <- outcome{name: e.name, err: err}
				return
			}

			r.record(e.name, latency, err)
			if err != nil {
				results <- outcome{name: e.name, err: fmt.Errorf("%s: %w", e.name, err)}
				return
			}
			results <- outcome{name: e.name, completion: &Completion{
				Answer:   answer,
				Provider: e.name,
				Latency:  latency,
			}}
		}(e)
	}

	var winner *Completion
	winnerScore := -1.0
	var lastErr error
	for range candidates {
		out := <-results
		if out.completion == nil {
			lastErr = out.err
			continue
		}
		score, err := r.Score(out.name)
		if err != nil {
			// Unregistered mid-race; rank it last.
			score = 0
		}
		if score > winnerScore ||
			(score == winnerScore && out.completion.Latency < winner.Latency) {
			winner = out.completion
			winnerScore = score
		}
	}

	if winner == nil {
		return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
	}
	winner.Stats = r.Stats()
	return winner, nil
}

// ranked returns providers sorted by descending score, with the preferred
// provider (if registered) moved to the front.
func (r *Registry) ranked(preferred string) []*providerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]*providerEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}

	slices.SortFunc(entries, func(a, b *providerEntry) int {
		sa, sb := a.score(), b.score()
		if sa > sb {
			return -1
		}
		if sa < sb {
			return 1
		}
		// Stable order for equal scores
		if a.name < b.name {
			return -1
		}
		if a.name > b.name {
			return 1
		}
		return 0
	})

	if preferred != "" {
		for i, e := range entries {
			if e.name == preferred && i > 0 {
				entries = append(entries[:i], entries[i+1:]...)
				entries = append([]*providerEntry{e}, entries...)
				break
			}
		}
	}

	return entries
}

// record folds one call outcome into the provider's statistics.
func (r *Registry) record(name string, latency time.Duration, callErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[name]
	if !exists {
		// Unregistered mid-flight; nothing to record against.
		return
	}

	e.stats.TotalRequests++
	e.stats.TotalLatency += latency
	e.stats.AvgLatency = e.stats.TotalLatency / time.Duration(e.stats.TotalRequests)
	if callErr != nil {
		e.stats.Errors++
	}
	e.stats.SuccessRate = float64(e.stats.TotalRequests-e.stats.Errors) / float64(e.stats.TotalRequests)
}
