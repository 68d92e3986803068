package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/deepsearch/core"
	"github.com/poiesic/deepsearch/storage"
)

func TestChunkBasics(t *testing.T) {
	chunkRepo, memoryRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer func() { chunkRepo.Close(); memoryRepo.Close(); backend.Close() }()

	ctx := context.Background()

	chunk := &core.Chunk{
		Text:       "Go is a statically typed language",
		Source:     "go-intro.md",
		ChunkIndex: 0,
		Vector:     []float32{1, 0, 0},
	}

	added, err := chunkRepo.AddChunks(ctx, chunk)
	if err != nil {
		t.Fatalf("Failed to add chunk: %v", err)
	}

	if len(added) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(added))
	}

	if added[0].Id == 0 {
		t.Fatal("Expected non-zero ID")
	}

	if added[0].InsertedAt.IsZero() {
		t.Fatal("Expected InsertedAt to be set")
	}

	retrieved, err := chunkRepo.GetChunk(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get chunk: %v", err)
	}

	if retrieved.Text != chunk.Text {
		t.Fatalf("Expected %q, got %q", chunk.Text, retrieved.Text)
	}

	count, err := chunkRepo.CountChunks(ctx)
	if err != nil {
		t.Fatalf("Failed to count chunks: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 chunk, got %d", count)
	}
}

func TestChunkContentIDIsStable(t *testing.T) {
	a := &core.Chunk{Text: "same text", Source: "doc.md", ChunkIndex: 3}
	b := &core.Chunk{Text: "same text", Source: "doc.md", ChunkIndex: 3}
	c := &core.Chunk{Text: "same text", Source: "doc.md", ChunkIndex: 4}

	if chunkContentID(a) != chunkContentID(b) {
		t.Fatal("Expected identical chunks to share an ID")
	}
	if chunkContentID(a) == chunkContentID(c) {
		t.Fatal("Expected different positions to produce different IDs")
	}
}

func TestChunkValidationOnAdd(t *testing.T) {
	chunkRepo, memoryRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer func() { chunkRepo.Close(); memoryRepo.Close(); backend.Close() }()

	ctx := context.Background()

	_, err = chunkRepo.AddChunks(ctx, &core.Chunk{Text: "", Source: "doc.md"})
	if !errors.Is(err, core.ErrEmptyText) {
		t.Fatalf("Expected ErrEmptyText, got %v", err)
	}
}

func TestChunkNotFound(t *testing.T) {
	chunkRepo, memoryRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer func() { chunkRepo.Close(); memoryRepo.Close(); backend.Close() }()

	ctx := context.Background()

	_, err = chunkRepo.GetChunk(ctx, core.ID(12345))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	err = chunkRepo.DeleteChunks(ctx, core.ID(12345))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestNearestChunksOrdering(t *testing.T) {
	chunkRepo, memoryRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer func() { chunkRepo.Close(); memoryRepo.Close(); backend.Close() }()

	ctx := context.Background()

	chunks := []*core.Chunk{
		{Text: "exact match", Source: "a.md", ChunkIndex: 0, Vector: []float32{1, 0, 0}},
		{Text: "orthogonal", Source: "a.md", ChunkIndex: 1, Vector: []float32{0, 1, 0}},
		{Text: "close match", Source: "a.md", ChunkIndex: 2, Vector: []float32{0.9, 0.1, 0}},
	}
	if _, err := chunkRepo.AddChunks(ctx, chunks...); err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	neighbors, err := chunkRepo.NearestChunks(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}

	if len(neighbors) != 3 {
		t.Fatalf("Expected 3 neighbors, got %d", len(neighbors))
	}

	if neighbors[0].Chunk.Text != "exact match" {
		t.Fatalf("Expected nearest to be the exact match, got %q", neighbors[0].Chunk.Text)
	}
	if neighbors[0].Distance > 1e-6 {
		t.Fatalf("Expected near-zero distance for exact match, got %f", neighbors[0].Distance)
	}
	if neighbors[1].Chunk.Text != "close match" {
		t.Fatalf("Expected second nearest to be the close match, got %q", neighbors[1].Chunk.Text)
	}

	// Distances must be non-decreasing
	for i := 1; i < len(neighbors); i++ {
		if neighbors[i].Distance < neighbors[i-1].Distance {
			t.Fatalf("Neighbors out of order at %d", i)
		}
	}
}

func TestNearestChunksEmptyCorpus(t *testing.T) {
	chunkRepo, memoryRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer func() { chunkRepo.Close(); memoryRepo.Close(); backend.Close() }()

	neighbors, err := chunkRepo.NearestChunks(context.Background(), []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Expected no error on empty corpus, got %v", err)
	}
	if len(neighbors) != 0 {
		t.Fatalf("Expected no neighbors, got %d", len(neighbors))
	}
}

func TestNearestChunksLimit(t *testing.T) {
	chunkRepo, memoryRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	defer func() { chunkRepo.Close(); memoryRepo.Close(); backend.Close() }()

	ctx := context.Background()

	for i := 0; i < 10; i++ {
		chunk := &core.Chunk{
			Text:       "chunk",
			Source:     "b.md",
			ChunkIndex: i,
			Vector:     []float32{float32(i) / 10, 1, 0},
		}
		if _, err := chunkRepo.AddChunks(ctx, chunk); err != nil {
			t.Fatalf("Failed to add chunk: %v", err)
		}
	}

	neighbors, err := chunkRepo.NearestChunks(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(neighbors) != 3 {
		t.Fatalf("Expected 3 neighbors, got %d", len(neighbors))
	}

	_, err = chunkRepo.NearestChunks(ctx, []float32{1, 0, 0}, 0)
	if !errors.Is(err, storage.ErrInvalidQuery) {
		t.Fatalf("Expected ErrInvalidQuery for zero limit, got %v", err)
	}
}
