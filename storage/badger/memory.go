package badger

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/deepsearch/core"
	"github.com/poiesic/deepsearch/storage"
)

// MemoryRepository implements storage.MemoryRepository for BadgerDB.
// Entries carry an interaction-time index so recency queries and eviction
// never have to scan the primary records.
type MemoryRepository struct {
	backend *Backend
}

var _ storage.MemoryRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates a new MemoryRepository on the given backend.
func NewMemoryRepository(backend *Backend) (*MemoryRepository, error) {
	return &MemoryRepository{backend: backend}, nil
}

// Close is a no-op; the shared backend owns the database handle.
func (r *MemoryRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *MemoryRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// entryContentID derives a stable content-based ID for a memory entry.
func entryContentID(entry *core.MemoryEntry) core.ID {
	content := fmt.Sprintf("%s\x00%d", entry.Query, entry.Timestamp.UnixMicro())
	return core.IDFromContent(content)
}

// AddEntries adds one or more memory entries to storage.
func (r *MemoryRepository) AddEntries(ctx context.Context, entries ...*core.MemoryEntry) ([]*core.MemoryEntry, error) {
	for _, entry := range entries {
		if err := core.ValidateMemoryEntry(entry); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, entry := range entries {
			if entry.Id == 0 {
				entry.Id = entryContentID(entry)
			}
			if entry.InsertedAt.IsZero() {
				entry.InsertedAt = time.Now().UTC()
			}

			// Store primary record
			key := makeMemoryKey(entry.Id)
			value := storage.MarshalMemoryEntry(entry)
			if err := tx.Set(key, value); err != nil {
				return err
			}

			// Update interaction-time index
			dateKey := makeMemoryDateKey(entry.Timestamp, entry.Id)
			if err := tx.Set(dateKey, storage.MarshalID(entry.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return entries, err
}

// GetEntry retrieves a single memory entry by ID.
func (r *MemoryRepository) GetEntry(ctx context.Context, id core.ID) (*core.MemoryEntry, error) {
	var result *core.MemoryEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readEntry(tx, makeMemoryKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// NearestEntries finds the memory entries closest to the given vector.
func (r *MemoryRepository) NearestEntries(ctx context.Context, vector []float32, limit int) ([]*storage.MemoryNeighbor, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var neighbors []*storage.MemoryNeighbor

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(memoryRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		datePrefix := []byte(memoryDatePrefix + ":")

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()

			// Skip interaction-time index keys
			if bytes.HasPrefix(item.Key(), datePrefix) {
				continue
			}

			var entry *core.MemoryEntry
			err := item.Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalMemoryEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			if entry == nil || len(entry.Vector) == 0 {
				continue
			}

			neighbors = append(neighbors, &storage.MemoryNeighbor{
				Entry:    entry,
				Distance: cosineDistance(vector, entry.Vector),
			})
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	// Sort by distance ascending (nearest first)
	slices.SortFunc(neighbors, func(a, b *storage.MemoryNeighbor) int {
		if a.Distance < b.Distance {
			return -1
		}
		if a.Distance > b.Distance {
			return 1
		}
		return 0
	})

	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}

	return neighbors, nil
}

// GetRecentEntries retrieves the N most recent entries by interaction timestamp.
func (r *MemoryRepository) GetRecentEntries(ctx context.Context, limit int) ([]*core.MemoryEntry, error) {
	var results []*core.MemoryEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Use reverse iterator to get most recent entries first
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true

		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek to the last possible key in the date index
		startKey := makePartialMemoryDateKey(time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC))
		prefix := []byte(memoryDatePrefix + ":")

		count := 0
		for iter.Seek(startKey); iter.Valid() && count < limit; iter.Next() {
			key := iter.Item().Key()

			if len(key) < len(prefix) || !bytes.Equal(key[:len(prefix)], prefix) {
				break
			}

			var entryID core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				entryID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			entry, err := r.readEntry(tx, makeMemoryKey(entryID))
			if err != nil {
				return err
			}
			if entry != nil {
				results = append(results, entry)
				count++
			}
		}
		return nil
	}, false)

	return results, err
}

// DeleteOldestEntries removes the count entries with the oldest interaction
// timestamps. The forward scan over the BigEndian date index visits entries
// oldest first.
func (r *MemoryRepository) DeleteOldestEntries(ctx context.Context, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}

	deleted := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(memoryDatePrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		type victim struct {
			dateKey []byte
			id      core.ID
		}
		var victims []victim

		for iter.Rewind(); iter.Valid() && len(victims) < count; iter.Next() {
			item := iter.Item()

			var entryID core.ID
			if err := item.Value(func(val []byte) error {
				var err error
				entryID, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			victims = append(victims, victim{
				dateKey: item.KeyCopy(nil),
				id:      entryID,
			})
		}
		iter.Close()

		for _, v := range victims {
			if err := tx.Delete(v.dateKey); err != nil {
				return err
			}
			if err := tx.Delete(makeMemoryKey(v.id)); err != nil {
				return err
			}
			deleted++
		}
		return tx.Commit()
	}, true)

	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// CountEntries returns the number of stored memory entries.
func (r *MemoryRepository) CountEntries(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(memoryDatePrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// ClearEntries removes all memory entries and their indices.
func (r *MemoryRepository) ClearEntries(ctx context.Context) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(memoryRecordPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		var keys [][]byte
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// readEntry reads and deserializes a memory entry by key.
// Returns nil (not an error) when the key doesn't exist.
func (r *MemoryRepository) readEntry(tx *badger.Txn, key []byte) (*core.MemoryEntry, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entry *core.MemoryEntry
	err = item.Value(func(val []byte) error {
		var err error
		entry, err = storage.UnmarshalMemoryEntry(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}
