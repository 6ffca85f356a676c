// Package rag defines the records, provider contracts, and retrieval logic of
// the embedding-indexed recall subsystem. Concrete backends (SQLite, Qdrant,
// Ollama, OpenAI, etc.) satisfy these interfaces so the plugin layer never
// depends on a specific implementation.
package rag

import (
	"context"
	"time"
)

// RecordType classifies what kind of knowledge a Record holds.
type RecordType string

const (
	// TypeAC is an acceptance criterion extracted from a requirements document.
	TypeAC RecordType = "ac"
	// TypeTest is a previously generated or hand-written test.
	TypeTest RecordType = "test"
	// TypeFlow is a recorded business flow.
	TypeFlow RecordType = "flow"
	// TypeRequirement is a whole requirement statement.
	TypeRequirement RecordType = "requirement"
	// TypePattern is a known failure or code pattern.
	TypePattern RecordType = "pattern"
)

// Valid reports whether t is one of the known record types.
func (t RecordType) Valid() bool {
	switch t {
	case TypeAC, TypeTest, TypeFlow, TypeRequirement, TypePattern:
		return true
	}
	return false
}

// Metadata describes where and when a Record was produced.
type Metadata struct {
	// Created is the record creation time.
	Created time.Time `json:"created"`
	// Author is optional; empty means unknown.
	Author string `json:"author,omitempty"`
	// Type classifies the record.
	Type RecordType `json:"type"`
}

// Record is a unit of indexed knowledge. Records are immutable except by
// upsert on ID.
type Record struct {
	// ID uniquely identifies the record within a store.
	ID string `json:"id"`
	// Text is the natural-language content.
	Text string `json:"text"`
	// Embedding is the vector for Text. A zero-length or all-zero vector is a
	// valid degraded entry.
	Embedding []float32 `json:"embedding"`
	// SourceFile is the origin file name (or label) of the record.
	SourceFile string `json:"sourceFile"`
	// Metadata holds creation time, author, and type.
	Metadata Metadata `json:"metadata"`
}

// SearchResult pairs a Record with its similarity to a query.
type SearchResult struct {
	// Record is the matched record.
	Record Record `json:"record"`
	// Score is the raw cosine similarity in [-1, 1].
	Score float64 `json:"score"`
	// Boost is the keyword bonus added by Rerank. Zero unless reranked.
	Boost float64 `json:"boost,omitempty"`
}

// Rank returns the ordering key of the result: Score plus any rerank Boost.
func (r SearchResult) Rank() float64 { return r.Score + r.Boost }

// Embedder is the raw backend contract for converting text into vectors.
// The returned slice is parallel to texts.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedding is the outcome of an EmbeddingProvider call. On upstream
// failure Vector is a zero vector of the provider's dimensionality,
// Degraded is true, and Cause carries the coded error.
type Embedding struct {
	Vector   []float32
	Degraded bool
	Cause    error
}

// EmbeddingProvider converts text into vectors and never fails the caller:
// upstream faults are folded into a degraded Embedding.
type EmbeddingProvider interface {
	// Name returns the backend label (e.g. "ollama").
	Name() string
	// Dimensions returns the fixed output dimensionality.
	Dimensions() int
	// Embed returns the embedding for a single text.
	Embed(ctx context.Context, text string) Embedding
	// EmbedBatch returns one Embedding per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) []Embedding
	// IsAvailable probes the backend with a short timeout.
	IsAvailable(ctx context.Context) bool
}

// GenerateOptions tunes a single generation call. Zero values mean the
// backend default.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// FallbackGeneration is returned in place of model output when generation
// fails. It is a comment so callers emitting code stay syntactically valid.
const FallbackGeneration = "// GENERATION UNAVAILABLE: manual review required"

// Generation is the outcome of a GenerationProvider call.
type Generation struct {
	Text     string
	Degraded bool
	Cause    error
}

// GenerationProvider produces text from a prompt. Upstream faults are folded
// into a degraded Generation carrying FallbackGeneration.
type GenerationProvider interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts GenerateOptions) Generation
	// CountTokens estimates the token count of text.
	CountTokens(text string) int
	IsAvailable(ctx context.Context) bool
}

// VectorStore persists records and answers similarity queries.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Name returns the backend label (e.g. "sqlite").
	Name() string
	// Init opens or creates the backing medium. Idempotent.
	Init(ctx context.Context) error
	// AddRecord upserts r by ID.
	AddRecord(ctx context.Context, r Record) error
	// GetRecord returns the record with id; ok is false when absent.
	GetRecord(ctx context.Context, id string) (rec Record, ok bool, err error)
	// FindByText returns all records whose Text equals text, ignoring case.
	FindByText(ctx context.Context, text string) ([]Record, error)
	// GetAllRecords returns every record in insertion order.
	GetAllRecords(ctx context.Context) ([]Record, error)
	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
	// DeleteRecord removes id. Absent ids are a no-op.
	DeleteRecord(ctx context.Context, id string) error
	// ClearAll removes every record.
	ClearAll(ctx context.Context) error
	// Search ranks stored records against query. See Rank.
	Search(ctx context.Context, query []float32, topK int, threshold float64) ([]SearchResult, error)
	// IsAvailable reports whether the store is initialized and reachable.
	IsAvailable(ctx context.Context) bool
	// Close releases resources. Later calls fail until Init is called again.
	Close() error
}

// Validation is the result of PromptRenderer.Validate.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// PromptRenderer fills {{key}} placeholders in a prompt template.
type PromptRenderer interface {
	Name() string
	// Render substitutes values into tpl. Missing keys render as a visible
	// marker rather than silently vanishing.
	Render(tpl string, values map[string]string) (string, error)
	Validate(tpl string) Validation
	IsAvailable(ctx context.Context) bool
}
