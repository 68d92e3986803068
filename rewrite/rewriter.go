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


package rewrite

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/deepsearch/core"
)

const (
	// DefaultMaxIterations bounds the rewrite loop.
	DefaultMaxIterations = 3

	// DefaultMinConfidence is the weakest strategy the loop will follow.
	DefaultMinConfidence = 0.6

	// satisfactoryScore terminates iteration early: the query already
	// retrieves well enough.
	satisfactoryScore = 0.8
)

// SearchFunc retrieves results for a candidate query.
type SearchFunc func(ctx context.Context, query string) ([]core.Reference, error)

// EvalFunc scores how well a candidate query retrieves. Optional; when nil
// the rewriter falls back to its built-in heuristic.
type EvalFunc func(ctx context.Context, query string, results []core.Reference) (float64, error)

// Rewriter iteratively improves queries that retrieve poorly. Each iteration
// searches with the current query, scores the outcome, and either stops or
// follows the highest-confidence strategy proposal into the next iteration.
//
// A Rewriter is stateless across calls and safe for concurrent use.
type Rewriter struct {
	maxIterations int
	minConfidence float64
	strategies    []Strategy
	logger        *slog.Logger
}

// Option is a functional option for configuring a Rewriter.
type Option func(*Rewriter)

// WithMaxIterations sets the iteration bound.
func WithMaxIterations(n int) Option {
	return func(r *Rewriter) {
		r.maxIterations = n
	}
}

// WithMinConfidence sets the weakest strategy confidence to follow.
func WithMinConfidence(c float64) Option {
	return func(r *Rewriter) {
		r.minConfidence = c
	}
}

// WithStrategies replaces the default strategy set.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Rewriter) {
		r.strategies = strategies
	}
}

// NewRewriter creates a Rewriter with the default strategy set.
func NewRewriter(opts ...Option) (*Rewriter, error) {
	r := &Rewriter{
		maxIterations: DefaultMaxIterations,
		minConfidence: DefaultMinConfidence,
		strategies:    DefaultStrategies(),
		logger:        slog.Default().With("component", "rewriter"),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.maxIterations < 1 {
		return nil, fmt.Errorf("rewrite: max iterations must be at least 1, got %d", r.maxIterations)
	}
	if r.minConfidence < 0 || r.minConfidence > 1 {
		return nil, fmt.Errorf("rewrite: min confidence must be in [0,1], got %f", r.minConfidence)
	}
	if len(r.strategies) == 0 {
		return nil, fmt.Errorf("rewrite: at least one strategy is required")
	}

	return r, nil
}

// proposal pairs a strategy with the query it produced.
type proposal struct {
	strategy Strategy
	query    string
}

// propose collects applicable strategies that actually change the query,
// sorted by confidence descending.
func (r *Rewriter) propose(query string, a Analysis) []proposal {
	var proposals []proposal
	for _, s := range r.strategies {
		if !s.Applies(a) {
			continue
		}
		rewritten := s.Propose(query)
		if rewritten == query {
			continue
		}
		proposals = append(proposals, proposal{strategy: s, query: rewritten})
	}

	slices.SortStableFunc(proposals, func(x, y proposal) int {
		if x.strategy.Confidence() > y.strategy.Confidence() {
			return -1
		}
		if x.strategy.Confidence() < y.strategy.Confidence() {
			return 1
		}
		return 0
	})

	return proposals
}

// Rewrite runs the iterative loop and returns one RewriteResult per
// iteration. The entry with the globally best score is appended with
// Iteration set to -1 when it differs from the last query tried.
//
// Search and evaluation failures degrade rather than abort: a failed search
// counts as zero results, a failed evaluation falls back to the heuristic
// score. At least one result is always returned.
func (r *Rewriter) Rewrite(ctx context.Context, originalQuery string, search SearchFunc, eval EvalFunc) ([]core.RewriteResult, error) {
	originalQuery = strings.TrimSpace(originalQuery)
	if originalQuery == "" {
		return nil, core.ErrEmptyQuery
	}
	if search == nil {
		return nil, fmt.Errorf("rewrite: search function is required")
	}

	var results []core.RewriteResult
	currentQuery := originalQuery
	currentStrategy := "original"
	bestScore := 0.0
	bestQuery := originalQuery

	for iteration := 0; iteration < r.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			// A cancellation before the first iteration has produced
			// nothing to return.
			if len(results) == 0 {
				return nil, err
			}
			break
		}

		searchResults, err := search(ctx, currentQuery)
		if err != nil {
			r.logger.Warn("search failed during rewrite, treating as empty",
				"iteration", iteration, "err", err)
			searchResults = nil
		}

		analysis := AnalyzeQuery(currentQuery, searchResults)

		score := heuristicScore(analysis)
		if eval != nil {
			evalScore, err := eval(ctx, currentQuery, searchResults)
			if err != nil {
				r.logger.Warn("evaluation failed during rewrite, using heuristic",
					"iteration", iteration, "err", err)
			} else {
				score = core.ClampScore(evalScore)
			}
		}

		results = append(results, core.RewriteResult{
			OriginalQuery:  originalQuery,
			RewrittenQuery: currentQuery,
			Strategy:       currentStrategy,
			Confidence:     score,
			Iteration:      iteration,
		})

		if score > bestScore {
			bestScore = score
			bestQuery = currentQuery
		}

		if score >= satisfactoryScore {
			r.logger.Debug("satisfactory score reached", "score", score, "iteration", iteration)
			break
		}

		proposals := r.propose(currentQuery, analysis)
		if len(proposals) == 0 {
			r.logger.Debug("no applicable strategies left", "iteration", iteration)
			break
		}

		best := proposals[0]
		if best.strategy.Confidence() < r.minConfidence {
			r.logger.Debug("best strategy below confidence floor",
				"strategy", best.strategy.Name(),
				"confidence", best.strategy.Confidence())
			break
		}

		r.logger.Debug("applying rewrite strategy",
			"iteration", iteration,
			"strategy", best.strategy.Name(),
			"query", best.query)

		currentQuery = best.query
		currentStrategy = best.strategy.Name()
	}

	// Surface the globally best query when the loop moved past it.
	if bestQuery != currentQuery {
		results = append(results, core.RewriteResult{
			OriginalQuery:  originalQuery,
			RewrittenQuery: bestQuery,
			Strategy:       "best_overall",
			Confidence:     bestScore,
			Iteration:      -1,
		})
	}

	return results, nil
}

// BestQuery returns the rewritten query with the highest confidence, or the
// empty string for an empty history.
func BestQuery(results []core.RewriteResult) string {
	best := ""
	bestConfidence := -1.0
	for _, r := range results {
		if r.Confidence > bestConfidence {
			bestConfidence = r.Confidence
			best = r.RewrittenQuery
		}
	}
	return best
}

// Explain renders a human-readable account of the rewrite history.
func Explain(results []core.RewriteResult) string {
	if len(results) == 0 {
		return "no rewrites performed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "rewrite history for %q:\n", results[0].OriginalQuery)
	for _, r := range results {
		if r.Iteration == -1 {
			fmt.Fprintf(&b, "  best overall: %q (score %.2f)\n", r.RewrittenQuery, r.Confidence)
			continue
		}
		fmt.Fprintf(&b, "  iteration %d [%s]: %q (score %.2f)\n",
			r.Iteration+1, r.Strategy, r.RewrittenQuery, r.Confidence)
	}
	return b.String()
}
