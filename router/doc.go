// Package router composes retrieval, rewriting, provider selection,
// evaluation and memory into one pass per query.
//
// Route never returns an error: retrieval failures degrade to the fallback
// path, memory and evaluation failures are logged and skipped, and only
// exhausting every answer backend produces a result with Source set to
// SourceError. A RouteMonitor can observe each stage, including whether a
// fallback was caused by an empty corpus or by hits below quorum.
package router
