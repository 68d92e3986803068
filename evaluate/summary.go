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
	"slices"

	"github.com/poiesic/deepsearch/core"
)

// MetricStats aggregates one metric across a set of evaluations.
type MetricStats struct {
	Mean   float64
	Median float64
	Min    float64
	Max    float64
	StdDev float64
	Count  int
}

// QueryTypeStats aggregates overall scores for one query type.
type QueryTypeStats struct {
	Count     int
	MeanScore float64
}

// Summary aggregates a batch of evaluations.
type Summary struct {
	TotalEvaluations  int
	OverallStats      MetricStats
	MetricStats       map[core.Metric]MetricStats
	QueryTypeStats    map[string]QueryTypeStats
	CommonSuggestions []string
}

// maxCommonSuggestions bounds the suggestion list in a Summary.
const maxCommonSuggestions = 5

// Summarize aggregates evaluation results into per-metric and per-query-type
// statistics, plus the most frequent improvement suggestions.
func Summarize(results []*core.EvaluationResult) *Summary {
	s := &Summary{
		TotalEvaluations: len(results),
		MetricStats:      make(map[core.Metric]MetricStats),
		QueryTypeStats:   make(map[string]QueryTypeStats),
	}
	if len(results) == 0 {
		return s
	}

	overall := make([]float64, 0, len(results))
	perMetric := make(map[core.Metric][]float64)
	perType := make(map[string][]float64)
	suggestionCounts := make(map[string]int)

	for _, r := range results {
		overall = append(overall, r.OverallScore)
		for metric, score := range r.Metrics {
			perMetric[metric] = append(perMetric[metric], score)
		}
		if r.QueryType != "" {
			perType[r.QueryType] = append(perType[r.QueryType], r.OverallScore)
		}
		for _, suggestion := range r.Suggestions {
			suggestionCounts[suggestion]++
		}
	}

	s.OverallStats = computeStats(overall)
	for metric, scores := range perMetric {
		s.MetricStats[metric] = computeStats(scores)
	}
	for queryType, scores := range perType {
		s.QueryTypeStats[queryType] = QueryTypeStats{
			Count:     len(scores),
			MeanScore: mean(scores),
		}
	}

	s.CommonSuggestions = topSuggestions(suggestionCounts, maxCommonSuggestions)
	return s
}

func computeStats(values []float64) MetricStats {
	if len(values) == 0 {
		return MetricStats{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}

	return MetricStats{
		Mean:   mean(values),
		Median: median,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		StdDev: stddev(values),
		Count:  len(values),
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// topSuggestions returns the most frequent suggestions, ties broken
// alphabetically for stable output.
func topSuggestions(counts map[string]int, limit int) []string {
	type entry struct {
		suggestion string
		count      int
	}
	entries := make([]entry, 0, len(counts))
	for suggestion, count := range counts {
		entries = append(entries, entry{suggestion, count})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		if a.count != b.count {
			return b.count - a.count
		}
		if a.suggestion < b.suggestion {
			return -1
		}
		return 1
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.suggestion
	}
	return out
}
