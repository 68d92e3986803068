package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// SourceType identifies where a routed answer came from.
type SourceType int

const (
	// SourceCorpus means the answer was grounded in the private indexed corpus.
	SourceCorpus SourceType = iota + 1
	// SourceFallback means the answer came from the external search path.
	SourceFallback
	// SourceError means the pipeline failed entirely and the answer carries a
	// user-facing error message.
	SourceError
)

// String returns the canonical name of the source type.
func (s SourceType) String() string {
	switch s {
	case SourceCorpus:
		return "corpus"
	case SourceFallback:
		return "fallback"
	case SourceError:
		return "error"
	default:
		return "unknown"
	}
}

// Chunk is an immutable piece of ingested document text together with its
// embedding vector. Chunks are created during ingestion and owned by the
// chunk index.
type Chunk struct {
	Id         ID
	Text       string
	Source     string // originating document identifier
	ChunkIndex int    // position of the chunk within its source document
	Extra      map[string]string
	Vector     []float32 // embedding vector (populated during ingestion)
	InsertedAt time.Time
}

// Hit is a retrieved chunk with its similarity to a query.
// Hits are ephemeral and never outlive the query that produced them.
type Hit struct {
	Chunk      *Chunk
	Similarity float64 // in [0,1], higher is closer
	Rank       int     // 1-based position in the retrieval result
}

// RouteDecision is the corpus retriever's verdict for a query.
type RouteDecision struct {
	UseCorpus bool
	Hits      []Hit
}

// Reference points at a source that contributed to an answer.
type Reference struct {
	Title      string
	URL        string
	Snippet    string
	Similarity float64 // zero for non-corpus references
}

// RouteResult is the orchestrator's single output per query.
// The router always returns one; internal failures surface as Source == SourceError.
type RouteResult struct {
	Answer     string
	Source     SourceType
	References []Reference
	Confidence float64 // in [0,1]
	Provider   string  // name of the backend that produced the answer
	FromMemory bool    // true when served from the similarity memory
}

// ProviderStats holds rolling performance counters for one answer backend.
// A snapshot is immutable; live counters are owned and synchronized by the
// provider registry.
type ProviderStats struct {
	TotalRequests int64
	Errors        int64
	TotalLatency  time.Duration
	AvgLatency    time.Duration
	SuccessRate   float64
}

// RewriteResult records one iteration of query rewriting.
type RewriteResult struct {
	OriginalQuery  string
	RewrittenQuery string
	Strategy       string
	Confidence     float64 // in [0,1]
	Iteration      int     // -1 marks the best-overall summary entry
}

// Metric names one quality dimension computed by the response evaluator.
type Metric string

const (
	MetricRelevance     Metric = "relevance"
	MetricAccuracy      Metric = "accuracy"
	MetricCompleteness  Metric = "completeness"
	MetricReadability   Metric = "readability"
	MetricCoherence     Metric = "coherence"
	MetricFactuality    Metric = "factuality"
	MetricSourceQuality Metric = "source_quality"
	MetricResponseTime  Metric = "response_time"
	MetricFreshness     Metric = "freshness"
	MetricCoverage      Metric = "coverage"
)

// EvaluationResult scores one generated answer. Immutable after creation.
type EvaluationResult struct {
	Id           ID
	Query        string
	Response     string
	QueryType    string
	Timestamp    time.Time
	Metrics      map[Metric]float64 // each in [0,1]
	OverallScore float64            // weighted combination, in [0,1]
	Sources      []string
	Feedback     map[Metric]string
	Suggestions  []string
}

// MemoryEntry is a cached (query, answer) pair addressable by query similarity.
// Entries are owned exclusively by the memory store.
type MemoryEntry struct {
	Id         ID
	Query      string
	Response   string
	QueryType  string
	Origin     SourceType // where the answer came from when it was admitted
	Timestamp  time.Time  // when the answer was produced
	Sources    []string
	Confidence float64   // admission-time confidence, in [0,1]
	Vector     []float32 // embedding of Query
	InsertedAt time.Time
}

// ClampScore clamps a similarity or confidence value to [0,1].
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
