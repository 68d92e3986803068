// Package memory remembers answered queries by similarity, so near-duplicate
// questions can be served without recomputing. Query embeddings are the
// lookup key; matches are filtered by similarity threshold, query type, and
// a recency window. The store evicts oldest first once it grows past its
// capacity limit.
package memory
