package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/deepsearch/core"
)

// Key prefixes for different data types
const (
	chunkRecordPrefix  = "chkrec"
	memoryRecordPrefix = "memrec"
	memoryDatePrefix   = "memrecd"
)

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", chunkRecordPrefix, id))
}

// makeMemoryKey generates a key for a memory entry by ID.
func makeMemoryKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", memoryRecordPrefix, id))
}

// makeMemoryDateKey generates a composite key for the interaction-time index.
// Format: prefix:timestamp:id
func makeMemoryDateKey(timestamp time.Time, id core.ID) []byte {
	prefix := memoryDatePrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for timestamp + 8 bytes for ID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialMemoryDateKey generates a partial key for time range queries.
// Format: prefix:timestamp
func makePartialMemoryDateKey(timestamp time.Time) []byte {
	prefix := memoryDatePrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 // 8 bytes for timestamp
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	return buf
}
