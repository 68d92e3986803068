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


package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/deepsearch/ai"
	"github.com/poiesic/deepsearch/core"
	"github.com/poiesic/deepsearch/storage"
)

// DefaultBatchSize is how many chunks are embedded per provider call.
const DefaultBatchSize = 16

// Report summarizes one ingestion run.
type Report struct {
	Source        string
	ChunksCreated int
	BatchesFailed int
}

// Pipeline turns raw extracted text into embedded, indexed corpus chunks.
// Text is split into overlapping chunks, embedded in batches, and indexed
// concurrently on a worker pool.
type Pipeline struct {
	chunkRepository storage.ChunkRepository
	embedder        ai.Embedder
	pool            *ants.Pool
	splitter        *Splitter
	batchSize       int
	logger          *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent batch processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithChunking sets chunk size and overlap in characters.
func WithChunking(chunkSize, overlap int) Option {
	return func(p *Pipeline) error {
		p.splitter = NewSplitter(chunkSize, overlap)
		return nil
	}
}

// WithBatchSize sets how many chunks are embedded per provider call.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("ingest: batch size must be at least 1, got %d", n)
		}
		p.batchSize = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(chunkRepository storage.ChunkRepository, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if chunkRepository == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		chunkRepository: chunkRepository,
		embedder:        embedder,
		pool:            pool,
		splitter:        NewSplitter(DefaultChunkSize, DefaultChunkOverlap),
		batchSize:       DefaultBatchSize,
		logger:          slog.Default().With("component", "ingest"),
	}
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Ingest splits the text, embeds each batch, and indexes the resulting
// chunks. Batches run concurrently on the worker pool; Ingest waits for all
// of them. A failed batch is logged and counted in the report without
// aborting the others.
func (p *Pipeline) Ingest(ctx context.Context, source, text string) (*Report, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: source is required", core.ErrInvalidChunk)
	}

	parts := p.splitter.Split(text)
	if len(parts) == 0 {
		return nil, core.ErrEmptyText
	}

	chunks := make([]*core.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = &core.Chunk{
			Text:       part,
			Source:     source,
			ChunkIndex: i,
		}
	}

	report := &Report{Source: source}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for start := 0; start < len(chunks); start += p.batchSize {
		end := min(start+p.batchSize, len(chunks))
		batch := chunks[start:end]

		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			stored, err := p.processBatch(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Error("batch failed", "source", source, "err", err)
				report.BatchesFailed++
				return
			}
			report.ChunksCreated += stored
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			report.BatchesFailed++
			mu.Unlock()
			p.logger.Error("failed to submit batch", "source", source, "err", err)
		}
	}
	wg.Wait()

	p.logger.Info("ingested document",
		"source", source,
		"chunks", report.ChunksCreated,
		"failedBatches", report.BatchesFailed)

	if report.ChunksCreated == 0 && report.BatchesFailed > 0 {
		return report, fmt.Errorf("%w: all batches failed for %s", ErrIngestFailed, source)
	}
	return report, nil
}

// processBatch embeds one batch of chunks and indexes them.
func (p *Pipeline) processBatch(ctx context.Context, batch []*core.Chunk) (int, error) {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return 0, fmt.Errorf("embedding result mismatch. expected %d, received %d", len(batch), len(vectors))
	}
	for i := range vectors {
		batch[i].Vector = vectors[i]
	}

	stored, err := p.chunkRepository.AddChunks(ctx, batch...)
	if err != nil {
		return 0, fmt.Errorf("indexing batch: %w", err)
	}
	return len(stored), nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
