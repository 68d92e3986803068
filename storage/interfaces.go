package storage

import (
	"context"

	"github.com/poiesic/deepsearch/core"
)

// Neighbor is a chunk paired with its vector distance from a query.
// Distance is cosine distance: 0 means identical direction, 2 means opposite.
// Callers that need a similarity score convert with core.ClampScore(1 - Distance).
type Neighbor struct {
	Chunk    *core.Chunk
	Distance float64
}

// MemoryNeighbor is a memory entry paired with its vector distance from a query.
type MemoryNeighbor struct {
	Entry    *core.MemoryEntry
	Distance float64
}

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// ChunkRepository provides operations for managing corpus chunks.
type ChunkRepository interface {
	Repository

	// AddChunks adds one or more chunks to storage.
	// For chunks with Id=0, derives content-based IDs from the chunk text.
	// Sets InsertedAt timestamp if not already set.
	// Returns the chunks with IDs and timestamps populated.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// GetChunks retrieves multiple chunks by their IDs.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// DeleteChunks removes chunks by their IDs.
	// Returns ErrNotFound if any chunk doesn't exist.
	DeleteChunks(ctx context.Context, ids ...core.ID) error

	// NearestChunks finds the chunks whose vectors are closest to the given
	// vector. Returns up to limit neighbors ordered by ascending distance.
	// An empty corpus yields an empty slice, not an error.
	NearestChunks(ctx context.Context, vector []float32, limit int) ([]*Neighbor, error)

	// CountChunks returns the number of chunks in the corpus.
	CountChunks(ctx context.Context) (int, error)
}

// MemoryRepository provides operations for managing remembered interactions.
type MemoryRepository interface {
	Repository

	// AddEntries adds one or more memory entries to storage.
	// For entries with Id=0, derives content-based IDs from query and timestamp.
	// Sets InsertedAt timestamp if not already set.
	// Returns the entries with IDs and timestamps populated.
	AddEntries(ctx context.Context, entries ...*core.MemoryEntry) ([]*core.MemoryEntry, error)

	// GetEntry retrieves a single memory entry by ID.
	// Returns ErrNotFound if the entry doesn't exist.
	GetEntry(ctx context.Context, id core.ID) (*core.MemoryEntry, error)

	// NearestEntries finds the memory entries whose vectors are closest to the
	// given vector. Returns up to limit neighbors ordered by ascending distance.
	NearestEntries(ctx context.Context, vector []float32, limit int) ([]*MemoryNeighbor, error)

	// GetRecentEntries retrieves the N most recent entries by interaction
	// timestamp, most recent first.
	GetRecentEntries(ctx context.Context, limit int) ([]*core.MemoryEntry, error)

	// DeleteOldestEntries removes the count entries with the oldest interaction
	// timestamps. Returns the number actually deleted, which may be lower when
	// fewer entries exist.
	DeleteOldestEntries(ctx context.Context, count int) (int, error)

	// CountEntries returns the number of stored memory entries.
	CountEntries(ctx context.Context) (int, error)

	// ClearEntries removes all memory entries and their indices.
	ClearEntries(ctx context.Context) error
}
