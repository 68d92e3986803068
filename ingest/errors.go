package ingest

import "errors"

var (
	// ErrChunkRepositoryRequired indicates no chunk repository was provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrEmbedderRequired indicates no embedder was provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrIngestFailed indicates no chunk of a document could be indexed.
	ErrIngestFailed = errors.New("ingestion failed")
)
