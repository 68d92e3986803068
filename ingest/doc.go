// Package ingest turns raw extracted text into indexed corpus chunks.
//
// Text is split into overlapping chunks at paragraph and sentence
// boundaries, embedded in batches, and written to the chunk index on a
// bounded worker pool. Readers for specific file formats live outside this
// module; the pipeline only consumes already-extracted text.
package ingest
