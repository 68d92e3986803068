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
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Strategy proposes a rewritten query. Implementations are stateless; the
// rewriter filters proposals that leave the query unchanged and ranks the
// rest by confidence.
type Strategy interface {
	// Name identifies the strategy in RewriteResult records.
	Name() string

	// Confidence is the fixed weight used to rank this strategy's proposals.
	Confidence() float64

	// Applies reports whether the strategy is worth trying for this analysis.
	Applies(a Analysis) bool

	// Propose returns the rewritten query, or the input unchanged when the
	// strategy has nothing to offer.
	Propose(query string) string
}

// DefaultStrategies returns the built-in strategy set.
func DefaultStrategies() []Strategy {
	return []Strategy{
		specificityStrategy{},
		temporalStrategy{},
		technicalStrategy{},
		reformulateStrategy{},
		simplifyStrategy{},
		synonymsStrategy{},
	}
}

// specificityStrategy appends concrete search terms keyed off the
// interrogative pattern of under-specified queries.
type specificityStrategy struct{}

// Phrase containment is checked on the lowercased query rather than with
// regexp word boundaries, which break on accented letters.
var specificityTerms = []struct {
	phrase string
	terms  string
}{
	{"qué es", "definición características"},
	{"cómo funciona", "funcionamiento proceso mecanismo"},
	{"cuáles son", "tipos ejemplos lista"},
	{"dónde", "ubicación lugar localización"},
	{"cuándo", "fecha tiempo momento"},
	{"por qué", "razones causas motivos"},
	{"what is", "definition characteristics"},
	{"how does", "process mechanism"},
	{"which are", "types examples list"},
	{"where", "location place"},
	{"when", "date time moment"},
	{"why", "reasons causes"},
}

func (specificityStrategy) Name() string        { return "add_specificity" }
func (specificityStrategy) Confidence() float64 { return 0.8 }

func (specificityStrategy) Applies(a Analysis) bool {
	return a.ComplexityScore < 0.5
}

func (specificityStrategy) Propose(query string) string {
	lower := strings.ToLower(query)
	for _, st := range specificityTerms {
		if strings.Contains(lower, st.phrase) {
			return query + " " + st.terms
		}
	}
	return query
}

// temporalStrategy anchors undated queries to the current year.
type temporalStrategy struct{}

var trendWords = []string{"tendencia", "futuro", "próximo", "trend", "future", "upcoming"}

func (temporalStrategy) Name() string        { return "add_temporal" }
func (temporalStrategy) Confidence() float64 { return 0.7 }

func (temporalStrategy) Applies(a Analysis) bool {
	return !a.HasTemporalContext
}

func (temporalStrategy) Propose(query string) string {
	year := time.Now().Year()
	lower := strings.ToLower(query)
	for _, w := range trendWords {
		if strings.Contains(lower, w) {
			return fmt.Sprintf("%s %d %d", query, year, year+1)
		}
	}
	return fmt.Sprintf("%s %d actual", query, year)
}

// technicalStrategy expands known technical acronyms in place.
type technicalStrategy struct{}

var acronymExpansions = []struct {
	pattern   *regexp.Regexp
	expansion string
}{
	{regexp.MustCompile(`\bIA\b`), "IA inteligencia artificial machine learning"},
	{regexp.MustCompile(`\bAI\b`), "AI artificial intelligence machine learning"},
	{regexp.MustCompile(`\bML\b`), "ML machine learning aprendizaje automático"},
	{regexp.MustCompile(`\bDL\b`), "DL deep learning aprendizaje profundo"},
	{regexp.MustCompile(`\bNLP\b`), "NLP procesamiento lenguaje natural"},
	{regexp.MustCompile(`\bAPI\b`), "API interfaz programación aplicaciones"},
}

func (technicalStrategy) Name() string        { return "expand_technical" }
func (technicalStrategy) Confidence() float64 { return 0.9 }

func (technicalStrategy) Applies(a Analysis) bool {
	return a.HasAcronyms
}

func (technicalStrategy) Propose(query string) string {
	expanded := query
	for _, ae := range acronymExpansions {
		expanded = ae.pattern.ReplaceAllString(expanded, ae.expansion)
	}
	return expanded
}

// reformulateStrategy turns interrogative queries into declarative search form.
type reformulateStrategy struct{}

var reformulations = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)¿?\s*\b(qué|que) es\b`), "definición concepto"},
	{regexp.MustCompile(`(?i)¿?\s*\b(cómo|como) funciona\b`), "funcionamiento proceso"},
	{regexp.MustCompile(`(?i)¿?\s*\b(cuáles|cuales) son\b`), "tipos ejemplos lista"},
	{regexp.MustCompile(`(?i)¿?\s*\bpor qué`), "razones causas motivos"},
	{regexp.MustCompile(`(?i)\bwhat is\b`), "definition concept"},
	{regexp.MustCompile(`(?i)\bhow does\b`), "process mechanism"},
	{regexp.MustCompile(`(?i)\bwhy\b`), "reasons causes"},
}

func (reformulateStrategy) Name() string        { return "reformulate_question" }
func (reformulateStrategy) Confidence() float64 { return 0.6 }

func (reformulateStrategy) Applies(a Analysis) bool {
	return a.HasQuestionWords
}

func (reformulateStrategy) Propose(query string) string {
	reformulated := query
	for _, rf := range reformulations {
		reformulated = rf.pattern.ReplaceAllString(reformulated, rf.replacement)
	}
	reformulated = strings.NewReplacer("¿", "", "?", "").Replace(reformulated)
	return strings.TrimSpace(reformulated)
}

// simplifyStrategy strips stopwords from long queries, keeping at least
// three tokens.
type simplifyStrategy struct{}

var stopWords = map[string]struct{}{
	"es": {}, "son": {}, "está": {}, "están": {}, "fue": {}, "fueron": {},
	"ser": {}, "estar": {}, "el": {}, "la": {}, "los": {}, "las": {},
	"un": {}, "una": {}, "unos": {}, "unas": {}, "de": {}, "del": {},
	"en": {}, "con": {}, "por": {}, "para": {}, "sin": {}, "sobre": {},
	"muy": {}, "más": {}, "menos": {}, "tanto": {}, "tan": {},
	"también": {}, "además": {},
	"the": {}, "a": {}, "an": {}, "of": {}, "in": {}, "on": {}, "for": {},
	"with": {}, "is": {}, "are": {}, "was": {}, "were": {}, "to": {},
	"very": {}, "also": {},
}

func (simplifyStrategy) Name() string        { return "simplify" }
func (simplifyStrategy) Confidence() float64 { return 0.7 }

func (simplifyStrategy) Applies(a Analysis) bool {
	return a.WordCount > 10
}

func (simplifyStrategy) Propose(query string) string {
	words := strings.Fields(query)
	filtered := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopWords[strings.ToLower(w)]; !stop {
			filtered = append(filtered, w)
		}
	}
	if len(filtered) < 3 {
		return query
	}
	return strings.Join(filtered, " ")
}

// synonymsStrategy appends domain synonyms for known terms.
type synonymsStrategy struct{}

var synonymMap = []struct {
	pattern  *regexp.Regexp
	synonyms string
}{
	{regexp.MustCompile(`(?i)\binteligencia artificial\b`), "IA AI machine learning"},
	{regexp.MustCompile(`(?i)\bartificial intelligence\b`), "AI machine learning"},
	{regexp.MustCompile(`(?i)\baprendizaje (automático|automatico)`), "machine learning ML algoritmos"},
	{regexp.MustCompile(`(?i)\bmachine learning\b`), "ML aprendizaje automático algoritmos"},
	{regexp.MustCompile(`(?i)\btecnología\b`), "tech innovación digital"},
	{regexp.MustCompile(`(?i)\bdesarrollo\b`), "programación coding software"},
	{regexp.MustCompile(`(?i)\banálisis\b`), "estudio investigación evaluación"},
	{regexp.MustCompile(`(?i)\bdatos\b`), "información data analytics"},
}

func (synonymsStrategy) Name() string        { return "add_synonyms" }
func (synonymsStrategy) Confidence() float64 { return 0.6 }

func (synonymsStrategy) Applies(a Analysis) bool {
	return true
}

func (synonymsStrategy) Propose(query string) string {
	enhanced := query
	for _, sm := range synonymMap {
		if sm.pattern.MatchString(query) {
			enhanced += " " + sm.synonyms
		}
	}
	return enhanced
}
