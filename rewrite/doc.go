// Package rewrite iteratively improves queries that retrieve poorly.
//
// The loop per call is: search with the current query, score the outcome,
// stop if good enough, otherwise ask a closed set of strategies for
// rewritten candidates and follow the highest-confidence one. Strategies
// are tagged variants implementing the Strategy interface, so new rewrite
// heuristics plug in without touching the selection logic.
//
// Queries in Spanish and English are both understood; analysis avoids
// regexp word boundaries around accented letters, which Go's regexp
// treats as non-word characters.
package rewrite
