// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"time"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - ChunkIndex must not be negative
//
// NOT validated (populated during ingestion):
//   - Vector (can be empty until the embedding step runs)
//   - ID (0 is valid before content hashing)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyText)
	}

	if chunk.ChunkIndex < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrInvalidChunkIndex)
	}

	return nil
}

// ValidateMemoryEntry validates a MemoryEntry according to domain rules.
//
// Validation rules:
//   - Query and Response must not be empty
//   - Confidence must be within [0,1]
//   - Timestamp must not be in the future
//
// The memory store performs no admission check beyond this; the orchestrator
// decides whether an entry's confidence clears the admission threshold.
func ValidateMemoryEntry(entry *MemoryEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidMemoryEntry)
	}

	if entry.Query == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMemoryEntry, ErrEmptyQuery)
	}

	if entry.Response == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMemoryEntry, ErrEmptyResponse)
	}

	if entry.Confidence < 0 || entry.Confidence > 1 {
		return fmt.Errorf("%w: %w: value %f", ErrInvalidMemoryEntry, ErrInvalidConfidence, entry.Confidence)
	}

	if !IsValidTimestamp(entry.Timestamp) {
		return fmt.Errorf("%w: %w", ErrInvalidMemoryEntry, ErrInvalidTimestamp)
	}

	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
