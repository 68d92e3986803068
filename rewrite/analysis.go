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
	"regexp"
	"strings"

	"github.com/poiesic/deepsearch/core"
)

// Analysis captures the measurable qualities of a query, optionally enriched
// with signals from the search results it produced.
type Analysis struct {
	WordCount          int
	CharCount          int
	HasQuestionWords   bool
	HasAcronyms        bool
	HasTemporalContext bool

	// ComplexityScore blends the signals above into [0,1].
	ComplexityScore float64

	// Result signals, only meaningful when HasResults is true.
	HasResults     bool
	ResultCount    int
	RelevanceRatio float64
}

var (
	acronymPattern = regexp.MustCompile(`\b[A-Z]{2,}\b`)
	yearPattern    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// questionWords are interrogative tokens in Spanish and English.
// Accented forms are matched on normalized tokens, not regex word
// boundaries, which mishandle non-ASCII letters.
var questionWords = map[string]struct{}{
	"qué": {}, "cómo": {}, "cuál": {}, "cuáles": {}, "dónde": {},
	"cuándo": {}, "quién": {}, "quiénes": {},
	"what": {}, "how": {}, "which": {}, "where": {}, "when": {},
	"why": {}, "who": {},
}

var temporalWords = map[string]struct{}{
	"actual": {}, "actualidad": {}, "reciente": {}, "último": {}, "última": {},
	"nuevo": {}, "nueva": {}, "hoy": {}, "ahora": {},
	"current": {}, "recent": {}, "latest": {}, "new": {}, "today": {},
}

// tokenize lowercases and splits a query, trimming punctuation from each token.
func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		token := strings.Trim(f, "¿?¡!.,;:\"'()")
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// AnalyzeQuery measures a query's complexity signals. Results may be nil;
// when present they additionally contribute a relevance ratio (the fraction
// of results sharing at least 30% term overlap with the query).
func AnalyzeQuery(query string, results []core.Reference) Analysis {
	tokens := tokenize(query)

	a := Analysis{
		WordCount: len(tokens),
		CharCount: len(query),
	}

	for i, token := range tokens {
		if _, ok := questionWords[token]; ok {
			a.HasQuestionWords = true
		}
		// "por qué" / "por que" counts as an interrogative bigram
		if token == "por" && i+1 < len(tokens) && (tokens[i+1] == "qué" || tokens[i+1] == "que") {
			a.HasQuestionWords = true
		}
		if _, ok := temporalWords[token]; ok {
			a.HasTemporalContext = true
		}
	}
	if yearPattern.MatchString(query) {
		a.HasTemporalContext = true
	}
	a.HasAcronyms = acronymPattern.MatchString(query)

	complexity := 0.0
	if a.WordCount >= 5 {
		complexity += 0.3
	}
	if a.HasQuestionWords {
		complexity += 0.2
	}
	if a.HasAcronyms {
		complexity += 0.3
	}
	if a.HasTemporalContext {
		complexity += 0.2
	}
	a.ComplexityScore = complexity

	if results != nil {
		a.HasResults = true
		a.ResultCount = len(results)

		queryTerms := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			queryTerms[t] = struct{}{}
		}

		relevant := 0
		for _, r := range results {
			resultTerms := tokenize(r.Title + " " + r.Snippet)
			overlap := 0
			seen := make(map[string]struct{}, len(resultTerms))
			for _, t := range resultTerms {
				if _, dup := seen[t]; dup {
					continue
				}
				seen[t] = struct{}{}
				if _, ok := queryTerms[t]; ok {
					overlap++
				}
			}
			if float64(overlap) >= float64(len(queryTerms))*0.3 {
				relevant++
			}
		}
		if len(results) > 0 {
			a.RelevanceRatio = float64(relevant) / float64(len(results))
		}
	}

	return a
}

// heuristicScore estimates query quality when no external evaluation
// function is supplied.
func heuristicScore(a Analysis) float64 {
	relevance := 0.5
	if a.HasResults {
		relevance = a.RelevanceRatio
	}
	resultScore := float64(a.ResultCount) / 10.0
	if resultScore > 1.0 {
		resultScore = 1.0
	}
	return core.ClampScore(relevance*0.4 + resultScore*0.3 + a.ComplexityScore*0.3)
}
