package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// RerankBoost is the score bonus Rerank adds per query keyword found in a
// record's text.
const RerankBoost = 0.1

// SearchOption overrides a Retriever default for a single call.
type SearchOption func(*searchParams)

// searchParams holds the resolved per-call search settings.
type searchParams struct {
	topK      int
	threshold float64
}

// WithTopK caps the number of results for one call.
func WithTopK(k int) SearchOption {
	return func(p *searchParams) { p.topK = k }
}

// WithThreshold sets the minimum similarity for one call.
func WithThreshold(t float64) SearchOption {
	return func(p *searchParams) { p.threshold = t }
}

// Retrieval is the ranked outcome of a retrieve call. Degraded is true when
// the query embedding was a fallback sentinel. A degraded retrieval never
// reaches the store and has empty Results, whatever the threshold.
type Retrieval struct {
	Results  []SearchResult
	Degraded bool
}

// Texts returns the record texts of r's results, in rank order.
func (r *Retrieval) Texts() []string {
	out := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		out = append(out, res.Record.Text)
	}
	return out
}

// Retriever combines an EmbeddingProvider and a VectorStore. It embeds the
// query at retrieval time and delegates similarity search to the store.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder EmbeddingProvider

	// store performs the vector similarity search.
	store VectorStore

	// defaultTopK is used when a call passes no WithTopK option.
	defaultTopK int

	// defaultThreshold is used when a call passes no WithThreshold option.
	defaultThreshold float64

	// boost is the per-keyword rerank bonus.
	boost float64
}

// RetrieverConfig holds the defaults for a Retriever. Zero values select
// DefaultTopK, DefaultThreshold, and RerankBoost.
type RetrieverConfig struct {
	TopK      int
	Threshold float64
	// HasThreshold marks Threshold as explicitly set, so 0 can be used.
	HasThreshold bool
	Boost        float64
}

// NewRetriever constructs a Retriever from the given provider and store.
func NewRetriever(embedder EmbeddingProvider, store VectorStore, cfg RetrieverConfig) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if !cfg.HasThreshold && cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Boost == 0 {
		cfg.Boost = RerankBoost
	}
	return &Retriever{
		embedder:         embedder,
		store:            store,
		defaultTopK:      cfg.TopK,
		defaultThreshold: cfg.Threshold,
		boost:            cfg.Boost,
	}, nil
}

// Retrieve embeds query and returns the ranked matches.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...SearchOption) (*Retrieval, error) {
	emb := r.embedder.Embed(ctx, query)
	if emb.Degraded {
		// A zero vector scores 0 against every record, which a threshold
		// <= 0 would accept.
		return &Retrieval{Results: []SearchResult{}, Degraded: true}, nil
	}
	return r.RetrieveByVector(ctx, emb.Vector, opts...)
}

// RetrieveByVector ranks stored records against vec using the store's Search.
func (r *Retriever) RetrieveByVector(ctx context.Context, vec []float32, opts ...SearchOption) (*Retrieval, error) {
	p := searchParams{topK: r.defaultTopK, threshold: r.defaultThreshold}
	for _, o := range opts {
		o(&p)
	}
	results, err := r.store.Search(ctx, vec, p.topK, p.threshold)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	return &Retrieval{Results: results}, nil
}

// Rerank adds the per-keyword boost to each result whose text contains a
// query keyword (case-insensitive substring) and re-sorts by Rank
// descending. Ties keep their incoming order. The input slice is not
// modified.
func (r *Retriever) Rerank(query string, results []SearchResult) []SearchResult {
	return RerankWith(query, results, r.boost)
}

// RerankWith is Rerank with an explicit per-keyword boost.
func RerankWith(query string, results []SearchResult, boost float64) []SearchResult {
	keywords := strings.Fields(strings.ToLower(query))
	out := make([]SearchResult, len(results))
	copy(out, results)
	for i := range out {
		text := strings.ToLower(out[i].Record.Text)
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				out[i].Boost += boost
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank() > out[j].Rank() })
	return out
}
