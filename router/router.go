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


package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/deepsearch/core"
	"github.com/poiesic/deepsearch/evaluate"
	"github.com/poiesic/deepsearch/memory"
	"github.com/poiesic/deepsearch/provider"
	"github.com/poiesic/deepsearch/retrieval"
	"github.com/poiesic/deepsearch/rewrite"
)

const (
	// DefaultAdmissionThreshold is the minimum confidence before an answer
	// is remembered.
	DefaultAdmissionThreshold = 0.6

	// DefaultTemperature is passed to answer backends.
	DefaultTemperature = 0.7

	// neutralConfidence substitutes for a failed evaluation.
	neutralConfidence = 0.5

	snippetLimit = 200
)

// Router is the orchestrator: one pass per query through memory check,
// corpus retrieval or rewritten fallback, generation, evaluation, and
// conditional admission to memory. Route never returns an error; total
// failure surfaces as a RouteResult with Source set to SourceError.
type Router struct {
	retriever *retrieval.Retriever
	registry  *provider.Registry
	rewriter  *rewrite.Rewriter
	evaluator *evaluate.Evaluator
	store     *memory.Store
	search    rewrite.SearchFunc

	admissionThreshold float64
	temperature        float64
	logger             *slog.Logger
}

// Option is a functional option for configuring a Router.
type Option func(*Router)

// WithRewriter enables query rewriting on the fallback path.
func WithRewriter(rewriter *rewrite.Rewriter) Option {
	return func(r *Router) {
		r.rewriter = rewriter
	}
}

// WithEvaluator enables answer scoring. Without one, answers carry a neutral
// confidence and are never admitted to memory.
func WithEvaluator(evaluator *evaluate.Evaluator) Option {
	return func(r *Router) {
		r.evaluator = evaluator
	}
}

// WithMemory enables the similarity memory.
func WithMemory(store *memory.Store) Option {
	return func(r *Router) {
		r.store = store
	}
}

// WithSearch supplies the external search used for fallback references and
// the rewrite loop.
func WithSearch(search rewrite.SearchFunc) Option {
	return func(r *Router) {
		r.search = search
	}
}

// WithAdmissionThreshold sets the confidence floor for remembering answers.
func WithAdmissionThreshold(t float64) Option {
	return func(r *Router) {
		r.admissionThreshold = t
	}
}

// WithTemperature sets the generation temperature.
func WithTemperature(t float64) Option {
	return func(r *Router) {
		r.temperature = t
	}
}

// NewRouter creates a Router. Retriever and registry are required; memory,
// rewriter, evaluator and search are optional and their stages are skipped
// when absent.
func NewRouter(retriever *retrieval.Retriever, registry *provider.Registry, opts ...Option) (*Router, error) {
	if retriever == nil {
		return nil, fmt.Errorf("router: retriever is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("router: provider registry is required")
	}

	r := &Router{
		retriever:          retriever,
		registry:           registry,
		admissionThreshold: DefaultAdmissionThreshold,
		temperature:        DefaultTemperature,
		logger:             slog.Default().With("component", "router"),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.admissionThreshold < 0 || r.admissionThreshold > 1 {
		return nil, fmt.Errorf("router: admission threshold must be in [0,1], got %f", r.admissionThreshold)
	}

	return r, nil
}

// Route answers one query.
func (r *Router) Route(ctx context.Context, query, queryType string) *core.RouteResult {
	return r.RouteWithMonitor(ctx, query, queryType, nil)
}

// RouteWithMonitor answers one query, reporting each pipeline stage to the
// monitor.
func (r *Router) RouteWithMonitor(ctx context.Context, query, queryType string, monitor RouteMonitor) *core.RouteResult {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		result := errorResult("La consulta está vacía.")
		monitor.Finish(result)
		return result
	}

	monitor.Start(query)

	if cached := r.checkMemory(ctx, query, queryType, monitor); cached != nil {
		monitor.Finish(cached)
		return cached
	}

	decision := r.retrieve(ctx, query, monitor)

	var result *core.RouteResult
	if decision.UseCorpus {
		monitor.CorpusSelected(decision.Hits)
		result = r.answerFromCorpus(ctx, query, decision.Hits, monitor)
	} else {
		result = r.answerFromFallback(ctx, query, monitor)
	}

	if result.Source != core.SourceError {
		r.evaluateAndRemember(ctx, query, queryType, result, monitor)
	}

	monitor.Finish(result)
	return result
}

// checkMemory returns a cached result for a near-duplicate query, or nil.
// Memory failures are logged and treated as a miss.
func (r *Router) checkMemory(ctx context.Context, query, queryType string, monitor RouteMonitor) *core.RouteResult {
	if r.store == nil {
		return nil
	}

	match, err := r.store.Lookup(ctx, query, queryType)
	if err != nil {
		r.logger.Warn("memory lookup failed, continuing without it", "err", err)
		monitor.MemoryMiss()
		return nil
	}
	if match == nil {
		monitor.MemoryMiss()
		return nil
	}

	monitor.MemoryHit(match.Entry.Response, match.Similarity)
	r.logger.Debug("serving from memory",
		"query", query,
		"similarity", match.Similarity)

	references := make([]core.Reference, 0, len(match.Entry.Sources))
	for _, source := range match.Entry.Sources {
		references = append(references, core.Reference{URL: source})
	}

	source := core.SourceCorpus
	if match.Entry.Origin == core.SourceFallback {
		source = core.SourceFallback
	}

	return &core.RouteResult{
		Answer:     match.Entry.Response,
		Source:     source,
		References: references,
		Confidence: match.Entry.Confidence,
		FromMemory: true,
	}
}

// retrieve runs corpus retrieval, degrading every failure to the fallback
// path. The monitor learns whether a fallback was due to an empty corpus or
// hits below quorum.
func (r *Router) retrieve(ctx context.Context, query string, monitor RouteMonitor) *core.RouteDecision {
	decision, err := r.retriever.Retrieve(ctx, query)
	if err != nil {
		r.logger.Warn("retrieval failed, degrading to fallback", "err", err)
		monitor.RetrievalFailed(err)
		return &core.RouteDecision{UseCorpus: false}
	}

	if !decision.UseCorpus {
		if size, err := r.retriever.CorpusSize(ctx); err == nil && size == 0 {
			monitor.CorpusEmpty()
		} else {
			monitor.BelowQuorum(decision.Hits)
		}
	}
	return decision
}

// answerFromCorpus builds a grounded prompt from the retrieved chunks and
// generates through the registry.
func (r *Router) answerFromCorpus(ctx context.Context, query string, hits []core.Hit, monitor RouteMonitor) *core.RouteResult {
	completion, err := r.registry.Generate(ctx, corpusPrompt(query, hits), r.temperature, "")
	if err != nil {
		r.logger.Error("generation failed on corpus path", "err", err)
		return errorResult("No se pudo generar una respuesta. Inténtalo de nuevo más tarde.")
	}
	monitor.AnswerGenerated(completion.Provider)

	references := make([]core.Reference, 0, len(hits))
	for _, hit := range hits {
		references = append(references, core.Reference{
			Title:      hit.Chunk.Source,
			Snippet:    truncate(hit.Chunk.Text, snippetLimit),
			Similarity: hit.Similarity,
		})
	}

	return &core.RouteResult{
		Answer:     completion.Answer,
		Source:     core.SourceCorpus,
		References: references,
		Provider:   completion.Provider,
	}
}

// answerFromFallback optionally rewrites the query, gathers external
// references, and generates through the registry.
func (r *Router) answerFromFallback(ctx context.Context, query string, monitor RouteMonitor) *core.RouteResult {
	finalQuery := query
	if r.rewriter != nil && r.search != nil {
		rewrites, err := r.rewriter.Rewrite(ctx, query, r.search, nil)
		if err != nil {
			r.logger.Warn("rewrite failed, using original query", "err", err)
		} else if best := rewrite.BestQuery(rewrites); best != "" {
			finalQuery = best
			monitor.QueryRewritten(rewrites, finalQuery)
		}
	}

	var references []core.Reference
	if r.search != nil {
		results, err := r.search(ctx, finalQuery)
		if err != nil {
			r.logger.Warn("fallback search failed, answering without references", "err", err)
		} else {
			references = results
		}
	}

	completion, err := r.registry.Generate(ctx, fallbackPrompt(finalQuery, references), r.temperature, "")
	if err != nil {
		r.logger.Error("generation failed on fallback path", "err", err)
		return errorResult("No se pudo generar una respuesta. Inténtalo de nuevo más tarde.")
	}
	monitor.AnswerGenerated(completion.Provider)

	return &core.RouteResult{
		Answer:     completion.Answer,
		Source:     core.SourceFallback,
		References: references,
		Provider:   completion.Provider,
	}
}

// evaluateAndRemember scores the answer and admits it to memory when the
// confidence clears the admission threshold. Both stages degrade silently.
func (r *Router) evaluateAndRemember(ctx context.Context, query, queryType string, result *core.RouteResult, monitor RouteMonitor) {
	result.Confidence = neutralConfidence

	if r.evaluator != nil {
		sources := make([]string, 0, len(result.References))
		for _, ref := range result.References {
			if ref.URL != "" {
				sources = append(sources, ref.URL)
			}
		}

		evaluation, err := r.evaluator.Evaluate(evaluate.Input{
			Query:     query,
			Response:  result.Answer,
			QueryType: queryType,
			Sources:   sources,
		})
		if err != nil {
			r.logger.Warn("evaluation failed, keeping neutral confidence", "err", err)
		} else {
			result.Confidence = evaluation.OverallScore
			monitor.Evaluated(evaluation)
		}
	}

	if r.store == nil || result.Confidence <= r.admissionThreshold {
		return
	}

	sources := make([]string, 0, len(result.References))
	for _, ref := range result.References {
		if ref.URL != "" {
			sources = append(sources, ref.URL)
		}
	}
	entryType := queryType
	if entryType == "" {
		entryType = result.Source.String()
	}

	stored, err := r.store.Store(ctx, &core.MemoryEntry{
		Query:      query,
		Response:   result.Answer,
		QueryType:  entryType,
		Origin:     result.Source,
		Timestamp:  time.Now(),
		Sources:    sources,
		Confidence: result.Confidence,
	})
	if err != nil {
		r.logger.Warn("failed to remember answer", "err", err)
		return
	}
	monitor.MemoryAdmitted(stored.Id)
}

func corpusPrompt(query string, hits []core.Hit) string {
	var b strings.Builder
	b.WriteString("Responde a la pregunta usando únicamente el contexto siguiente.\n\nContexto:\n")
	for _, hit := range hits {
		fmt.Fprintf(&b, "- %s\n", hit.Chunk.Text)
	}
	fmt.Fprintf(&b, "\nPregunta: %s\n", query)
	return b.String()
}

func fallbackPrompt(query string, references []core.Reference) string {
	if len(references) == 0 {
		return query
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Responde a la pregunta. Resultados de búsqueda relacionados:\n")
	for _, ref := range references {
		fmt.Fprintf(&b, "- %s: %s\n", ref.Title, ref.Snippet)
	}
	fmt.Fprintf(&b, "\nPregunta: %s\n", query)
	return b.String()
}

func errorResult(message string) *core.RouteResult {
	return &core.RouteResult{
		Answer: message,
		Source: core.SourceError,
	}
}

// truncate shortens s to at most n runes, never splitting a multibyte rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
