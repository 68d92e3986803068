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


package evaluate

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/deepsearch/core"
)

// DefaultWeights is the relative importance of each metric in the overall
// score. Weights sum to 1.0.
func DefaultWeights() map[core.Metric]float64 {
	return map[core.Metric]float64{
		core.MetricRelevance:     0.25,
		core.MetricFactuality:    0.20,
		core.MetricCompleteness:  0.15,
		core.MetricReadability:   0.10,
		core.MetricCoherence:     0.10,
		core.MetricSourceQuality: 0.10,
		core.MetricFreshness:     0.05,
		core.MetricCoverage:      0.05,
	}
}

// DefaultThresholds is the per-metric floor below which a suggestion is
// emitted.
func DefaultThresholds() map[core.Metric]float64 {
	return map[core.Metric]float64{
		core.MetricRelevance:    0.6,
		core.MetricFactuality:   0.7,
		core.MetricCompleteness: 0.5,
		core.MetricReadability:  0.4,
		core.MetricCoherence:    0.6,
	}
}

const defaultThreshold = 0.5

var suggestions = map[core.Metric]string{
	core.MetricRelevance:     "la respuesta debería abordar más directamente los términos de la consulta",
	core.MetricFactuality:    "incluir datos verificables, cifras o referencias concretas",
	core.MetricCompleteness:  "cubrir más aspectos de la pregunta, con estructura y longitud adecuadas",
	core.MetricReadability:   "usar frases más cortas y vocabulario más simple",
	core.MetricCoherence:     "mejorar la estructura en párrafos y el uso de conectores",
	core.MetricSourceQuality: "citar fuentes de mayor calidad y diversidad",
	core.MetricResponseTime:  "reducir el tiempo de respuesta",
}

// Evaluator scores responses across several heuristic metrics and combines
// them into a weighted overall score. An Evaluator is safe for concurrent use.
type Evaluator struct {
	weights    map[core.Metric]float64
	thresholds map[core.Metric]float64
	poolSize   int
	logger     *slog.Logger
}

// Option is a functional option for configuring an Evaluator.
type Option func(*Evaluator)

// WithWeights replaces the default metric weights.
func WithWeights(weights map[core.Metric]float64) Option {
	return func(e *Evaluator) {
		e.weights = weights
	}
}

// WithThresholds replaces the default suggestion thresholds.
func WithThresholds(thresholds map[core.Metric]float64) Option {
	return func(e *Evaluator) {
		e.thresholds = thresholds
	}
}

// WithPoolSize sets the worker pool size used by BatchEvaluate.
func WithPoolSize(n int) Option {
	return func(e *Evaluator) {
		e.poolSize = n
	}
}

// NewEvaluator creates an Evaluator with default weights and thresholds.
func NewEvaluator(opts ...Option) (*Evaluator, error) {
	e := &Evaluator{
		weights:    DefaultWeights(),
		thresholds: DefaultThresholds(),
		poolSize:   4,
		logger:     slog.Default().With("component", "evaluator"),
	}
	for _, opt := range opts {
		opt(e)
	}

	if len(e.weights) == 0 {
		return nil, fmt.Errorf("evaluate: at least one metric weight is required")
	}
	for metric, w := range e.weights {
		if w < 0 {
			return nil, fmt.Errorf("evaluate: negative weight for metric %s", metric)
		}
	}
	if e.poolSize < 1 {
		return nil, fmt.Errorf("evaluate: pool size must be at least 1, got %d", e.poolSize)
	}

	return e, nil
}

// Input is a single response to evaluate.
type Input struct {
	Query        string
	Response     string
	QueryType    string
	Sources      []string
	ResponseTime time.Duration
}

// Evaluate scores a single query/response pair. Source quality is always
// measured, so an unsourced response is penalized rather than skipped.
// Response time is only measured when a positive duration is given.
func (e *Evaluator) Evaluate(in Input) (*core.EvaluationResult, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, core.ErrEmptyQuery
	}
	response := strings.TrimSpace(in.Response)
	if response == "" {
		return nil, core.ErrEmptyResponse
	}

	now := time.Now()
	result := &core.EvaluationResult{
		Id:        evaluationID(query, response, now),
		Query:     query,
		Response:  response,
		QueryType: in.QueryType,
		Timestamp: now,
		Metrics:   make(map[core.Metric]float64),
		Sources:   in.Sources,
		Feedback:  make(map[core.Metric]string),
	}

	record := func(metric core.Metric, score float64, feedback string) {
		result.Metrics[metric] = score
		result.Feedback[metric] = feedback
	}

	score, feedback := evaluateRelevance(query, response)
	record(core.MetricRelevance, score, feedback)

	score, feedback = evaluateCompleteness(query, response)
	record(core.MetricCompleteness, score, feedback)

	score, feedback = evaluateReadability(response)
	record(core.MetricReadability, score, feedback)

	score, feedback = evaluateFactuality(response)
	record(core.MetricFactuality, score, feedback)

	score, feedback = evaluateCoherence(response)
	record(core.MetricCoherence, score, feedback)

	score, feedback = evaluateSourceQuality(in.Sources)
	record(core.MetricSourceQuality, score, feedback)

	if in.ResponseTime > 0 {
		score, feedback = evaluateResponseTime(in.ResponseTime.Seconds())
		record(core.MetricResponseTime, score, feedback)
	}

	result.OverallScore = e.overall(result.Metrics)
	result.Suggestions = e.suggest(result.Metrics)

	e.logger.Debug("evaluated response",
		"query", query,
		"overall", result.OverallScore,
		"suggestions", len(result.Suggestions))

	return result, nil
}

// overall combines measured metrics into a weighted score. Metrics without a
// configured weight contribute nothing.
func (e *Evaluator) overall(metrics map[core.Metric]float64) float64 {
	total := 0.0
	for metric, score := range metrics {
		total += score * e.weights[metric]
	}
	return core.ClampScore(total)
}

// suggest returns one improvement suggestion per metric below its threshold.
func (e *Evaluator) suggest(metrics map[core.Metric]float64) []string {
	var out []string
	for metric, score := range metrics {
		threshold, ok := e.thresholds[metric]
		if !ok {
			threshold = defaultThreshold
		}
		if score >= threshold {
			continue
		}
		if s, ok := suggestions[metric]; ok {
			out = append(out, s)
		} else {
			out = append(out, fmt.Sprintf("mejorar la métrica %s", metric))
		}
	}
	return out
}

// BatchEvaluate scores many inputs on a worker pool and returns the results
// that succeeded, in no particular order. Individual failures are logged and
// skipped.
func (e *Evaluator) BatchEvaluate(inputs []Input) ([]*core.EvaluationResult, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(e.poolSize)
	if err != nil {
		return nil, fmt.Errorf("evaluate: failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []*core.EvaluationResult
	)

	for _, in := range inputs {
		in := in
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			result, err := e.Evaluate(in)
			if err != nil {
				e.logger.Warn("skipping failed evaluation", "query", in.Query, "err", err)
				return
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			e.logger.Warn("failed to submit evaluation", "query", in.Query, "err", err)
		}
	}

	wg.Wait()
	return results, nil
}

// evaluationID derives a stable identifier from the query, a response
// prefix, and the evaluation time.
func evaluationID(query, response string, ts time.Time) core.ID {
	prefix := response
	if len(prefix) > 100 {
		prefix = prefix[:100]
	}
	return core.IDFromContent(fmt.Sprintf("%s\x00%s\x00%d", query, prefix, ts.UnixMicro()))
}
