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


package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/deepsearch/ai"
	"github.com/poiesic/deepsearch/core"
	"github.com/poiesic/deepsearch/storage"
)

const (
	// DefaultSimilarityThreshold is the minimum similarity for a chunk to
	// count as relevant.
	DefaultSimilarityThreshold = 0.7

	// DefaultMinHits is the relevance quorum: fewer relevant chunks than this
	// routes the query away from the corpus.
	DefaultMinHits = 2

	// DefaultMaxHits bounds how many chunks a single retrieval returns.
	DefaultMaxHits = 5
)

// Retriever embeds queries and decides whether the local corpus can answer
// them. The decision is a quorum test: at least MinHits chunks above the
// similarity threshold.
type Retriever struct {
	embedder ai.Embedder
	chunks   storage.ChunkRepository

	similarityThreshold float64
	minHits             int
	maxHits             int

	logger *slog.Logger
}

// Option is a functional option for configuring a Retriever.
type Option func(*Retriever)

// WithSimilarityThreshold sets the minimum similarity for relevance.
func WithSimilarityThreshold(threshold float64) Option {
	return func(r *Retriever) {
		r.similarityThreshold = threshold
	}
}

// WithMinHits sets the relevance quorum.
func WithMinHits(n int) Option {
	return func(r *Retriever) {
		r.minHits = n
	}
}

// WithMaxHits sets the retrieval result bound.
func WithMaxHits(n int) Option {
	return func(r *Retriever) {
		r.maxHits = n
	}
}

// NewRetriever creates a Retriever over the given embedder and chunk repository.
func NewRetriever(embedder ai.Embedder, chunks storage.ChunkRepository, opts ...Option) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("retrieval: embedder is required")
	}
	if chunks == nil {
		return nil, fmt.Errorf("retrieval: chunk repository is required")
	}

	r := &Retriever{
		embedder:            embedder,
		chunks:              chunks,
		similarityThreshold: DefaultSimilarityThreshold,
		minHits:             DefaultMinHits,
		maxHits:             DefaultMaxHits,
		logger:              slog.Default().With("component", "retriever"),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.similarityThreshold < 0 || r.similarityThreshold > 1 {
		return nil, fmt.Errorf("retrieval: similarity threshold must be in [0,1], got %f", r.similarityThreshold)
	}
	if r.minHits < 1 {
		return nil, fmt.Errorf("retrieval: min hits must be at least 1, got %d", r.minHits)
	}
	if r.maxHits < r.minHits {
		return nil, fmt.Errorf("retrieval: max hits (%d) must be >= min hits (%d)", r.maxHits, r.minHits)
	}

	return r, nil
}

// Retrieve embeds the query and returns the routing decision.
//
// An empty corpus short-circuits before any embedding call: the decision is
// an immediate "no corpus" without touching the AI provider. Hits below the
// similarity threshold are discarded; the remaining hits are returned even
// when they miss the quorum, so callers can still inspect near-misses.
func (r *Retriever) Retrieve(ctx context.Context, query string) (*core.RouteDecision, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.ErrEmptyQuery
	}

	count, err := r.chunks.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting corpus chunks: %w", err)
	}
	if count == 0 {
		r.logger.Debug("corpus is empty, skipping retrieval", "query", query)
		return &core.RouteDecision{UseCorpus: false}, nil
	}

	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	neighbors, err := r.chunks.NearestChunks(ctx, vector, r.maxHits)
	if err != nil {
		return nil, fmt.Errorf("searching corpus: %w", err)
	}

	hits := make([]core.Hit, 0, len(neighbors))
	for _, n := range neighbors {
		similarity := core.ClampScore(1.0 - n.Distance)
		if similarity < r.similarityThreshold {
			continue
		}
		hits = append(hits, core.Hit{
			Chunk:      n.Chunk,
			Similarity: similarity,
			Rank:       len(hits) + 1,
		})
	}

	decision := &core.RouteDecision{
		UseCorpus: len(hits) >= r.minHits,
		Hits:      hits,
	}

	r.logger.Debug("retrieval decision",
		"query", query,
		"corpus_size", count,
		"hits", len(hits),
		"use_corpus", decision.UseCorpus)

	return decision, nil
}

// CorpusSize returns the number of chunks available for retrieval.
func (r *Retriever) CorpusSize(ctx context.Context) (int, error) {
	return r.chunks.CountChunks(ctx)
}

// SimilarityThreshold returns the configured relevance threshold.
func (r *Retriever) SimilarityThreshold() float64 {
	return r.similarityThreshold
}

// MinHits returns the configured relevance quorum.
func (r *Retriever) MinHits() int {
	return r.minHits
}
