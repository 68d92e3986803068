// Package evaluate scores answers across heuristic quality metrics and
// combines them into a weighted overall score.
//
// Each metric is measured independently with bilingual (Spanish and English)
// lexical heuristics; no model calls are made. Metrics below their threshold
// produce an improvement suggestion. Batches run on a shared worker pool and
// can be aggregated into per-metric and per-query-type statistics with
// Summarize.
package evaluate
