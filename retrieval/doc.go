// Package retrieval decides whether the local corpus can answer a query.
//
// The Retriever embeds the query, runs a nearest-neighbor search over the
// chunk repository, converts distances to similarity scores, and applies a
// quorum rule: the corpus is used only when at least MinHits chunks score at
// or above the similarity threshold. An empty corpus short-circuits to a
// fallback decision without calling the embedder at all.
package retrieval
