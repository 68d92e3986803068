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
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/poiesic/deepsearch/core"
)

var (
	factualPattern = regexp.MustCompile(
		`(?i)\b(según|de acuerdo con|estudios|investigación|estadísticas|datos|porcentaje|cifras|according to|studies show|research indicates|statistics|percent)\b`)
	uncertaintyPattern = regexp.MustCompile(
		`(?i)\b(posiblemente|quizás|tal vez|probablemente|puede que|no estoy seguro|no está claro|possibly|perhaps|maybe|probably|not sure|unclear)\b`)
	citationPattern = regexp.MustCompile(
		`(?i)https?://[^\s]+|\b(fuente|referencia|enlace|source|reference|link)\b`)
	numberPattern       = regexp.MustCompile(`\b\d+(\.\d+)?%?\b`)
	datePattern         = regexp.MustCompile(`\b\d{4}\b|\b\d{1,2}/\d{1,2}/\d{4}\b`)
	numberedListPattern = regexp.MustCompile(`\d+\.\s`)
	bulletListPattern   = regexp.MustCompile(`[-•]\s`)
	sentenceEndPattern  = regexp.MustCompile(`[.!?]+`)
)

var connectorWords = []string{
	"además", "sin embargo", "por tanto", "en consecuencia", "por ejemplo",
	"moreover", "however", "therefore", "for example", "in addition",
}

var transitionWords = []string{
	"además", "sin embargo", "por otro lado", "en consecuencia",
	"por tanto", "finalmente", "en resumen", "por ejemplo",
	"moreover", "however", "on the other hand", "therefore",
	"finally", "in summary", "for example",
}

// tokens splits text into lowercased word tokens, keeping accented letters
// together (unlike \w, which is ASCII-only).
func tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenSet returns the distinct tokens of text.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokens(text) {
		set[t] = struct{}{}
	}
	return set
}

// evaluateRelevance scores term overlap between query and response, with a
// bonus for directly addressing the interrogative intent and a penalty for
// extreme response lengths.
func evaluateRelevance(query, response string) (float64, string) {
	queryTerms := tokenSet(query)
	responseTerms := tokenSet(response)

	common := 0
	for t := range queryTerms {
		if _, ok := responseTerms[t]; ok {
			common++
		}
	}

	overlap := float64(common) / math.Max(float64(len(queryTerms)), 1)

	queryLower := strings.ToLower(query)
	responseLower := strings.ToLower(response)
	addressesQuestion := false
	switch {
	case strings.Contains(queryLower, "qué es") || strings.Contains(queryLower, "what is"):
		addressesQuestion = true
		if strings.Contains(responseLower, "es ") || strings.Contains(responseLower, "definición") ||
			strings.Contains(responseLower, "is ") || strings.Contains(responseLower, "definition") {
			overlap += 0.2
		}
	case strings.Contains(queryLower, "cómo") || strings.Contains(queryLower, "how"):
		addressesQuestion = true
		if strings.Contains(responseLower, "proceso") || strings.Contains(responseLower, "pasos") ||
			strings.Contains(responseLower, "process") || strings.Contains(responseLower, "steps") {
			overlap += 0.2
		}
	case strings.Contains(queryLower, "cuál") || strings.Contains(queryLower, "which"):
		addressesQuestion = true
		if strings.Contains(responseLower, "tipos") || strings.Contains(responseLower, "ejemplos") ||
			strings.Contains(responseLower, "types") || strings.Contains(responseLower, "examples") {
			overlap += 0.2
		}
	}

	wordCount := len(tokens(response))
	if wordCount < 20 {
		overlap *= 0.8
	} else if wordCount > 500 {
		overlap *= 0.9
	}

	score := core.ClampScore(overlap)
	feedback := fmt.Sprintf("term overlap %d/%d", common, len(queryTerms))
	if addressesQuestion {
		feedback += ", addresses the question directly"
	}
	return score, feedback
}

// aspectSets maps interrogative patterns to the aspects a complete answer
// should cover.
var aspectSets = []struct {
	phrases []string
	aspects []string
}{
	{[]string{"qué es", "what is"}, []string{"definición", "características", "ejemplos", "definition", "characteristics", "examples"}},
	{[]string{"cómo funciona", "how does"}, []string{"proceso", "pasos", "mecanismo", "process", "steps", "mechanism"}},
	{[]string{"cuáles son", "which are"}, []string{"lista", "tipos", "ejemplos", "list", "types", "examples"}},
	{[]string{"ventajas", "beneficios", "advantages", "benefits"}, []string{"ventajas", "beneficios", "pros", "advantages", "benefits"}},
	{[]string{"desventajas", "problemas", "disadvantages", "problems"}, []string{"desventajas", "problemas", "contras", "disadvantages", "problems", "cons"}},
}

var genericAspects = []string{"información", "contexto", "detalles", "information", "context", "details"}

// evaluateCompleteness checks coverage of the aspects expected for the
// query's interrogative type, plus structure and length bonuses.
func evaluateCompleteness(query, response string) (float64, string) {
	queryLower := strings.ToLower(query)
	responseLower := strings.ToLower(response)

	expected := genericAspects
	for _, as := range aspectSets {
		matched := false
		for _, phrase := range as.phrases {
			if strings.Contains(queryLower, phrase) {
				matched = true
				break
			}
		}
		if matched {
			expected = as.aspects
			break
		}
	}

	covered := 0
	for _, aspect := range expected {
		if strings.Contains(responseLower, aspect) {
			covered++
		}
	}
	coverage := float64(covered) / math.Max(float64(len(expected)), 1)

	structureBonus := 0.0
	if numberedListPattern.MatchString(response) {
		structureBonus += 0.1
	}
	if bulletListPattern.MatchString(response) {
		structureBonus += 0.1
	}
	if strings.Count(response, "\n\n") >= 2 {
		structureBonus += 0.1
	}

	wordCount := len(tokens(response))
	lengthBonus := 0.0
	switch {
	case wordCount >= 50 && wordCount <= 300:
		lengthBonus = 0.2
	case wordCount >= 30 && wordCount <= 500:
		lengthBonus = 0.1
	}

	score := core.ClampScore(coverage + structureBonus + lengthBonus)

	feedback := fmt.Sprintf("aspects covered %d/%d", covered, len(expected))
	if structureBonus > 0 {
		feedback += ", well structured"
	}
	if lengthBonus > 0 {
		feedback += ", appropriate length"
	}
	return score, feedback
}

// evaluateReadability penalizes long sentences and long words, with a bonus
// for discourse connectors.
func evaluateReadability(response string) (float64, string) {
	sentences := len(sentenceEndPattern.FindAllString(response, -1))
	words := len(strings.Fields(response))
	characters := len(response)

	if sentences == 0 || words == 0 {
		return 0.0, "empty or unstructured response"
	}

	avgWordsPerSentence := float64(words) / float64(sentences)
	avgCharsPerWord := float64(characters) / float64(words)

	score := 1.0
	switch {
	case avgWordsPerSentence > 25:
		score -= 0.3
	case avgWordsPerSentence > 20:
		score -= 0.1
	}
	switch {
	case avgCharsPerWord > 7:
		score -= 0.2
	case avgCharsPerWord > 6:
		score -= 0.1
	}

	responseLower := strings.ToLower(response)
	connectorCount := 0
	for _, conn := range connectorWords {
		if strings.Contains(responseLower, conn) {
			connectorCount++
		}
	}
	if connectorCount > 0 {
		score += math.Min(float64(connectorCount)*0.05, 0.2)
	}

	return core.ClampScore(score), fmt.Sprintf("avg words/sentence %.1f, chars/word %.1f",
		avgWordsPerSentence, avgCharsPerWord)
}

// evaluateFactuality looks for citation, number and date patterns, and
// subtracts for hedging language.
func evaluateFactuality(response string) (float64, string) {
	score := 0.5
	var feedbackItems []string

	factual := len(factualPattern.FindAllString(response, -1))
	if factual > 0 {
		score += math.Min(float64(factual)*0.1, 0.3)
		feedbackItems = append(feedbackItems, fmt.Sprintf("factual indicators: %d", factual))
	}

	uncertain := len(uncertaintyPattern.FindAllString(response, -1))
	if uncertain > 0 {
		score -= math.Min(float64(uncertain)*0.1, 0.2)
		feedbackItems = append(feedbackItems, fmt.Sprintf("hedging indicators: %d", uncertain))
	}

	numbers := len(numberPattern.FindAllString(response, -1))
	if numbers > 0 {
		score += math.Min(float64(numbers)*0.05, 0.2)
		feedbackItems = append(feedbackItems, fmt.Sprintf("specific numbers: %d", numbers))
	}

	dates := len(datePattern.FindAllString(response, -1))
	if dates > 0 {
		score += math.Min(float64(dates)*0.05, 0.1)
		feedbackItems = append(feedbackItems, fmt.Sprintf("specific dates: %d", dates))
	}

	citations := len(citationPattern.FindAllString(response, -1))
	if citations > 0 {
		score += math.Min(float64(citations)*0.1, 0.2)
		feedbackItems = append(feedbackItems, fmt.Sprintf("citations: %d", citations))
	}

	feedback := "basic factuality analysis"
	if len(feedbackItems) > 0 {
		feedback = strings.Join(feedbackItems, ", ")
	}
	return core.ClampScore(score), feedback
}

// evaluateCoherence rewards paragraph structure, transitions and varied
// sentence length, and penalizes excessive repetition.
func evaluateCoherence(response string) (float64, string) {
	score := 0.5
	var feedbackItems []string

	paragraphs := strings.Split(response, "\n\n")
	if len(paragraphs) > 1 {
		score += 0.2
		feedbackItems = append(feedbackItems, "paragraph structure")
	}

	responseLower := strings.ToLower(response)
	transitions := 0
	for _, w := range transitionWords {
		if strings.Contains(responseLower, w) {
			transitions++
		}
	}
	if transitions > 0 {
		score += math.Min(float64(transitions)*0.1, 0.3)
		feedbackItems = append(feedbackItems, fmt.Sprintf("transition words: %d", transitions))
	}

	// Repetition: any significant word above 10% of total is a smell
	words := tokens(response)
	freq := make(map[string]int)
	maxRepetition := 0
	for _, w := range words {
		if len(w) <= 3 {
			continue
		}
		freq[w]++
		if freq[w] > maxRepetition {
			maxRepetition = freq[w]
		}
	}
	if maxRepetition > len(words)/10 {
		score -= 0.2
		feedbackItems = append(feedbackItems, "excessive repetition")
	}

	// Sentence length variance
	var lengths []float64
	for _, s := range sentenceEndPattern.Split(response, -1) {
		if n := len(strings.Fields(s)); n > 0 {
			lengths = append(lengths, float64(n))
		}
	}
	if stddev(lengths) > 3 {
		score += 0.1
		feedbackItems = append(feedbackItems, "varied sentence length")
	}

	feedback := "basic coherence analysis"
	if len(feedbackItems) > 0 {
		feedback = strings.Join(feedbackItems, ", ")
	}
	return core.ClampScore(score), feedback
}

// domain reputation for source scoring
var highQualityDomains = map[string]float64{
	"wikipedia.org": 0.9,
	".edu":          0.95,
	".gov":          0.9,
	".org":          0.7,
	"nature.com":    0.95,
	"science.org":   0.95,
	"ieee.org":      0.9,
	"acm.org":       0.9,
}

// evaluateSourceQuality scores sources by domain reputation, HTTPS and
// diversity. Zero sources score zero.
func evaluateSourceQuality(sources []string) (float64, string) {
	if len(sources) == 0 {
		return 0.0, "no sources provided"
	}

	total := 0.0
	for _, source := range sources {
		sourceScore := 0.3
		sourceLower := strings.ToLower(source)
		for domain, domainScore := range highQualityDomains {
			if strings.Contains(sourceLower, domain) {
				sourceScore = domainScore
				break
			}
		}
		if strings.HasPrefix(source, "https://") {
			sourceScore += 0.1
		}
		total += sourceScore
	}
	avg := total / float64(len(sources))

	unique := make(map[string]struct{})
	for _, source := range sources {
		if _, rest, ok := strings.Cut(source, "//"); ok {
			domain, _, _ := strings.Cut(rest, "/")
			unique[domain] = struct{}{}
		}
	}
	diversityBonus := math.Min(float64(len(unique))*0.1, 0.3)

	score := core.ClampScore(avg + diversityBonus)
	return score, fmt.Sprintf("sources: %d, unique domains: %d", len(sources), len(unique))
}

// evaluateResponseTime scores 1.0 up to 2s, decays linearly to 10s, then
// decays more slowly toward a floor of 0.2.
func evaluateResponseTime(seconds float64) (float64, string) {
	var score float64
	switch {
	case seconds <= 2:
		score = 1.0
	case seconds <= 10:
		score = 1.0 - (seconds-2)*0.1
	default:
		score = math.Max(0.2, 1.0-(seconds-10)*0.05)
	}
	return core.ClampScore(score), fmt.Sprintf("response time %.2fs", seconds)
}

// stddev is the sample standard deviation; zero for fewer than two values.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}
