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


package memory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/deepsearch/ai"
	"github.com/poiesic/deepsearch/core"
	"github.com/poiesic/deepsearch/storage"
)

const (
	// DefaultMaxEntries caps the store before eviction kicks in.
	DefaultMaxEntries = 1000

	// DefaultSimilarityThreshold filters lookups; below it a remembered
	// query is not considered a match.
	DefaultSimilarityThreshold = 0.7

	// DefaultMaxResults bounds a similarity lookup.
	DefaultMaxResults = 3

	// DefaultTimeWindow is how far back lookups reach.
	DefaultTimeWindow = 24 * time.Hour

	// evictionSlack removes a few extra entries per cleanup so the store is
	// not evicting on every insert once it hovers at capacity.
	evictionSlack = 10
)

// Match pairs a remembered entry with its similarity to the lookup query.
type Match struct {
	Entry      *core.MemoryEntry
	Similarity float64
}

// Stats is a point-in-time snapshot of the store.
type Stats struct {
	TotalEntries        int
	MaxEntries          int
	SimilarityThreshold float64
	QueryTypesSample    map[string]int // distribution over the 10 most recent entries
}

// Store remembers answered queries by embedding them, so near-duplicate
// questions can be served from memory instead of recomputed. Entries past the
// capacity limit are evicted oldest first.
type Store struct {
	embedder   ai.Embedder
	entries    storage.MemoryRepository
	maxEntries int
	threshold  float64
	logger     *slog.Logger
}

// Option is a functional option for configuring a Store.
type Option func(*Store)

// WithMaxEntries sets the capacity before eviction.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		s.maxEntries = n
	}
}

// WithSimilarityThreshold sets the lookup similarity floor.
func WithSimilarityThreshold(t float64) Option {
	return func(s *Store) {
		s.threshold = t
	}
}

// NewStore creates a Store backed by the given embedder and repository.
func NewStore(embedder ai.Embedder, entries storage.MemoryRepository, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("memory: embedder is required")
	}
	if entries == nil {
		return nil, fmt.Errorf("memory: entry repository is required")
	}

	s := &Store{
		embedder:   embedder,
		entries:    entries,
		maxEntries: DefaultMaxEntries,
		threshold:  DefaultSimilarityThreshold,
		logger:     slog.Default().With("component", "memory"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.maxEntries < 1 {
		return nil, fmt.Errorf("memory: max entries must be at least 1, got %d", s.maxEntries)
	}
	if s.threshold < 0 || s.threshold > 1 {
		return nil, fmt.Errorf("memory: similarity threshold must be in [0,1], got %f", s.threshold)
	}

	return s, nil
}

// Store embeds the query and persists the interaction, then evicts the
// oldest entries when the store has grown past capacity. Eviction failures
// are logged, not returned: the new entry is already safe.
func (s *Store) Store(ctx context.Context, entry *core.MemoryEntry) (*core.MemoryEntry, error) {
	if entry == nil {
		return nil, fmt.Errorf("%w: entry is nil", core.ErrInvalidMemoryEntry)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if err := core.ValidateMemoryEntry(entry); err != nil {
		return nil, err
	}

	if len(entry.Vector) == 0 {
		vector, err := s.embedder.EmbedText(ctx, entry.Query)
		if err != nil {
			return nil, fmt.Errorf("memory: failed to embed query: %w", err)
		}
		entry.Vector = vector
	}

	stored, err := s.entries.AddEntries(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("memory: failed to store entry: %w", err)
	}

	if err := s.evict(ctx); err != nil {
		s.logger.Warn("eviction failed", "err", err)
	}

	s.logger.Debug("stored memory entry",
		"id", stored[0].Id,
		"query", truncate(entry.Query, 50))
	return stored[0], nil
}

// evict removes the oldest entries when the count exceeds capacity, plus a
// little slack so cleanups stay infrequent.
func (s *Store) evict(ctx context.Context) error {
	count, err := s.entries.CountEntries(ctx)
	if err != nil {
		return err
	}
	if count <= s.maxEntries {
		return nil
	}

	toDelete := count - s.maxEntries + evictionSlack
	deleted, err := s.entries.DeleteOldestEntries(ctx, toDelete)
	if err != nil {
		return err
	}
	s.logger.Info("evicted old memory entries", "deleted", deleted, "count", count)
	return nil
}

// SearchSimilar finds remembered interactions whose queries embed close to
// the given one. Matches are filtered by similarity threshold, optional query
// type, and recency window, then returned best first.
//
// queryType empty matches all types. timeWindow zero or negative disables the
// recency filter.
func (s *Store) SearchSimilar(ctx context.Context, query, queryType string, maxResults int, timeWindow time.Duration) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.ErrEmptyQuery
	}
	if maxResults < 1 {
		maxResults = DefaultMaxResults
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("memory: failed to embed query: %w", err)
	}

	// Over-fetch so post-filtering still fills maxResults.
	neighbors, err := s.entries.NearestEntries(ctx, vector, maxResults*2)
	if err != nil {
		return nil, fmt.Errorf("memory: similarity search failed: %w", err)
	}

	var cutoff time.Time
	if timeWindow > 0 {
		cutoff = time.Now().Add(-timeWindow)
	}

	var matches []Match
	for _, n := range neighbors {
		similarity := core.ClampScore(1 - n.Distance)
		if similarity < s.threshold {
			continue
		}
		if queryType != "" && n.Entry.QueryType != queryType {
			continue
		}
		if !cutoff.IsZero() && n.Entry.Timestamp.Before(cutoff) {
			continue
		}
		matches = append(matches, Match{Entry: n.Entry, Similarity: similarity})
	}

	slices.SortFunc(matches, func(a, b Match) int {
		if a.Similarity > b.Similarity {
			return -1
		}
		if a.Similarity < b.Similarity {
			return 1
		}
		return 0
	})
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}

	s.logger.Debug("similar queries found",
		"query", truncate(query, 50),
		"matches", len(matches))
	return matches, nil
}

// Lookup returns the single best match above the threshold, or nil when the
// store has nothing close enough.
func (s *Store) Lookup(ctx context.Context, query, queryType string) (*Match, error) {
	matches, err := s.SearchSimilar(ctx, query, queryType, 1, DefaultTimeWindow)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// Stats reports entry counts and the query-type distribution of the most
// recent entries.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	count, err := s.entries.CountEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: failed to count entries: %w", err)
	}

	recent, err := s.entries.GetRecentEntries(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("memory: failed to read recent entries: %w", err)
	}
	sample := make(map[string]int)
	for _, entry := range recent {
		queryType := entry.QueryType
		if queryType == "" {
			queryType = "unknown"
		}
		sample[queryType]++
	}

	return &Stats{
		TotalEntries:        count,
		MaxEntries:          s.maxEntries,
		SimilarityThreshold: s.threshold,
		QueryTypesSample:    sample,
	}, nil
}

// Clear removes every remembered interaction.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.entries.ClearEntries(ctx); err != nil {
		return fmt.Errorf("memory: failed to clear entries: %w", err)
	}
	s.logger.Info("memory cleared")
	return nil
}

// truncate shortens s to at most n runes, never splitting a multibyte rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
