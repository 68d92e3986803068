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

package deepsearch

import (
	"context"
	"log/slog"

	"github.com/poiesic/deepsearch/ai"
	"github.com/poiesic/deepsearch/ai/openai"
	"github.com/poiesic/deepsearch/core"
	"github.com/poiesic/deepsearch/evaluate"
	"github.com/poiesic/deepsearch/ingest"
	"github.com/poiesic/deepsearch/memory"
	"github.com/poiesic/deepsearch/provider"
	"github.com/poiesic/deepsearch/retrieval"
	"github.com/poiesic/deepsearch/rewrite"
	"github.com/poiesic/deepsearch/router"
	"github.com/poiesic/deepsearch/storage"
	"github.com/poiesic/deepsearch/storage/badger"
	"github.com/poiesic/deepsearch/websearch"
)

// System is the assembled pipeline: storage backend, repositories, AI
// provider, answer registry, and the router composing them. Construct with
// Open, release with Close.
type System struct {
	backend    *badger.Backend
	chunkRepo  storage.ChunkRepository
	memoryRepo storage.MemoryRepository
	aiProvider ai.AIProvider
	registry   *provider.Registry
	retriever  *retrieval.Retriever
	store      *memory.Store
	evaluator  *evaluate.Evaluator
	rewriter   *rewrite.Rewriter
	router     *router.Router
	search     *websearch.Client
	logger     *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	aiConfig      *ai.Config
	aiProvider    ai.AIProvider
	inMemory      bool
	webSearch     bool
	retrievalOpts []retrieval.Option
	memoryOpts    []memory.Option
	routerOpts    []router.Option
}

// WithAIConfig sets the OpenAI-compatible endpoint configuration.
func WithAIConfig(config *ai.Config) SystemOption {
	return func(o *systemOptions) {
		o.aiConfig = config
	}
}

// WithAIProvider injects a pre-built provider, bypassing the config.
// Mainly for tests.
func WithAIProvider(p ai.AIProvider) SystemOption {
	return func(o *systemOptions) {
		o.aiProvider = p
	}
}

// WithInMemoryStorage keeps all data in memory instead of on disk.
func WithInMemoryStorage() SystemOption {
	return func(o *systemOptions) {
		o.inMemory = true
	}
}

// WithWebSearch registers the search-backed answer generator alongside the
// model backend and enables fallback references and query rewriting.
func WithWebSearch() SystemOption {
	return func(o *systemOptions) {
		o.webSearch = true
	}
}

// WithRetrievalOptions forwards options to the corpus retriever.
func WithRetrievalOptions(opts ...retrieval.Option) SystemOption {
	return func(o *systemOptions) {
		o.retrievalOpts = append(o.retrievalOpts, opts...)
	}
}

// WithMemoryOptions forwards options to the memory store.
func WithMemoryOptions(opts ...memory.Option) SystemOption {
	return func(o *systemOptions) {
		o.memoryOpts = append(o.memoryOpts, opts...)
	}
}

// WithRouterOptions forwards options to the router.
func WithRouterOptions(opts ...router.Option) SystemOption {
	return func(o *systemOptions) {
		o.routerOpts = append(o.routerOpts, opts...)
	}
}

// Open builds the full system at filePath. Construction is fail-fast:
// invalid configuration surfaces here, not on first use.
func Open(filePath string, opts ...SystemOption) (*System, error) {
	options := &systemOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	memoryRepo, err := badger.NewMemoryRepository(backend)
	if err != nil {
		chunkRepo.Close()
		backend.Close()
		return nil, err
	}

	aiProvider := options.aiProvider
	if aiProvider == nil {
		aiProvider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			memoryRepo.Close()
			chunkRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	cleanup := func() {
		aiProvider.Close()
		memoryRepo.Close()
		chunkRepo.Close()
		backend.Close()
	}

	retriever, err := retrieval.NewRetriever(aiProvider.Embedder(), chunkRepo, options.retrievalOpts...)
	if err != nil {
		cleanup()
		return nil, err
	}

	store, err := memory.NewStore(aiProvider.Embedder(), memoryRepo, options.memoryOpts...)
	if err != nil {
		cleanup()
		return nil, err
	}

	evaluator, err := evaluate.NewEvaluator()
	if err != nil {
		cleanup()
		return nil, err
	}

	rewriter, err := rewrite.NewRewriter()
	if err != nil {
		cleanup()
		return nil, err
	}

	registry := provider.NewRegistry()
	generator := aiProvider.Generator()
	if err := registry.Register(generator.Name(), generator); err != nil {
		cleanup()
		return nil, err
	}

	routerOpts := []router.Option{
		router.WithMemory(store),
		router.WithEvaluator(evaluator),
		router.WithRewriter(rewriter),
	}

	var searchClient *websearch.Client
	if options.webSearch {
		searchClient = websearch.NewClient()
		searchGenerator, err := websearch.NewGenerator(searchClient,
			websearch.WithPageExtraction(websearch.NewExtractor()))
		if err != nil {
			cleanup()
			return nil, err
		}
		if err := registry.Register(searchGenerator.Name(), searchGenerator); err != nil {
			cleanup()
			return nil, err
		}
		routerOpts = append(routerOpts, router.WithSearch(searchFunc(searchClient)))
	}
	routerOpts = append(routerOpts, options.routerOpts...)

	rt, err := router.NewRouter(retriever, registry, routerOpts...)
	if err != nil {
		cleanup()
		return nil, err
	}

	return &System{
		backend:    backend,
		chunkRepo:  chunkRepo,
		memoryRepo: memoryRepo,
		aiProvider: aiProvider,
		registry:   registry,
		retriever:  retriever,
		store:      store,
		evaluator:  evaluator,
		rewriter:   rewriter,
		router:     rt,
		search:     searchClient,
		logger:     slog.Default(),
	}, nil
}

// searchFunc adapts the instant-answer client to the reference-list contract
// the rewriter and router expect.
func searchFunc(client *websearch.Client) rewrite.SearchFunc {
	return func(ctx context.Context, query string) ([]core.Reference, error) {
		answer, err := client.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		return answer.References, nil
	}
}

// Route answers one query through the full pipeline.
func (s *System) Route(ctx context.Context, query, queryType string) *core.RouteResult {
	return s.router.Route(ctx, query, queryType)
}

// RouteWithMonitor answers one query, reporting pipeline stages to monitor.
func (s *System) RouteWithMonitor(ctx context.Context, query, queryType string, monitor router.RouteMonitor) *core.RouteResult {
	return s.router.RouteWithMonitor(ctx, query, queryType, monitor)
}

// Evaluate scores an existing answer without routing.
func (s *System) Evaluate(in evaluate.Input) (*core.EvaluationResult, error) {
	return s.evaluator.Evaluate(in)
}

// Memory exposes the similarity memory store.
func (s *System) Memory() *memory.Store {
	return s.store
}

// Providers exposes the answer-backend registry.
func (s *System) Providers() *provider.Registry {
	return s.registry
}

// NewIngestionPipeline builds an ingestion pipeline over the system's chunk
// index and embedder.
func (s *System) NewIngestionPipeline(opts ...ingest.Option) (*ingest.Pipeline, error) {
	return ingest.NewPipeline(s.chunkRepo, s.aiProvider.Embedder(), opts...)
}

// Stats is a point-in-time snapshot across the system's components.
type Stats struct {
	CorpusChunks int
	Memory       *memory.Stats
	Providers    map[string]core.ProviderStats
}

// Stats reports corpus, memory and provider statistics.
func (s *System) Stats(ctx context.Context) (*Stats, error) {
	corpusSize, err := s.retriever.CorpusSize(ctx)
	if err != nil {
		return nil, err
	}
	memoryStats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		CorpusChunks: corpusSize,
		Memory:       memoryStats,
		Providers:    s.registry.Stats(),
	}, nil
}

// Close releases the provider, repositories and backend.
func (s *System) Close() error {
	if err := s.aiProvider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.memoryRepo.Close(); err != nil {
		s.logger.Error("error closing memory repository", "err", err)
		return err
	}
	if err := s.chunkRepo.Close(); err != nil {
		s.logger.Error("error closing chunk repository", "err", err)
		return err
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
