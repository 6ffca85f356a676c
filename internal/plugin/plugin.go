// Package plugin is the façade of the recall subsystem. A Plugin owns one
// instance of each provider (embedding, generation, storage, rendering),
// constructed once from Config, and exposes the operations callers use:
// indexing requirement documents, generating tests grounded on similar
// records, failure analysis, wait estimation, and traceability.
package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/acrecall/internal/embedder"
	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/ingestion"
	"github.com/54b3r/acrecall/internal/logging"
	"github.com/54b3r/acrecall/internal/provider"
	"github.com/54b3r/acrecall/internal/rag"
	"github.com/54b3r/acrecall/internal/render"
	"github.com/54b3r/acrecall/internal/store"
)

// Plugin composes the providers behind the recall operations. Call Init
// before any operation and Close when done.
type Plugin struct {
	cfg Config
	// log overrides the context logger when set.
	log *slog.Logger

	embedder  rag.EmbeddingProvider
	generator rag.GenerationProvider
	store     rag.VectorStore
	renderer  rag.PromptRenderer
	templates TemplateSource
	handlers  []callbacks.Handler

	retriever *rag.Retriever
	pipeline  *ingestion.Pipeline

	mu          sync.RWMutex
	initialized bool
}

// Option customizes a Plugin, typically by injecting a provider. Injected
// providers take precedence over the backend named in Config.
type Option func(*Plugin)

// WithEmbedder injects the embedding provider.
func WithEmbedder(e rag.EmbeddingProvider) Option { return func(p *Plugin) { p.embedder = e } }

// WithGenerator injects the generation provider.
func WithGenerator(g rag.GenerationProvider) Option { return func(p *Plugin) { p.generator = g } }

// WithStore injects the record store.
func WithStore(s rag.VectorStore) Option { return func(p *Plugin) { p.store = s } }

// WithRenderer injects the prompt renderer.
func WithRenderer(r rag.PromptRenderer) Option { return func(p *Plugin) { p.renderer = r } }

// WithTemplates injects the template source.
func WithTemplates(t TemplateSource) Option { return func(p *Plugin) { p.templates = t } }

// WithLogger sets the logger used for every operation.
func WithLogger(l *slog.Logger) Option { return func(p *Plugin) { p.log = l } }

// WithCallbacks attaches eino callback handlers (e.g. Langfuse) to the
// generation provider built from Config. Ignored for injected generators.
func WithCallbacks(h ...callbacks.Handler) Option {
	return func(p *Plugin) { p.handlers = append(p.handlers, h...) }
}

// New builds a Plugin from cfg. Providers not injected via options are
// constructed from cfg. A disabled Plugin is returned without building
// anything; its operations return errs.ErrDisabled.
func New(ctx context.Context, cfg Config, opts ...Option) (*Plugin, error) {
	p := &Plugin{cfg: cfg}
	for _, o := range opts {
		o(p)
	}
	if !cfg.Enabled {
		return p, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var err error
	if p.embedder == nil {
		if err = embedder.Validate(cfg.Embedding, logging.FromContext(p.context(ctx))); err != nil {
			return nil, errs.Wrap(err, errs.CodeConfigInvalid, "plugin: embedding provider")
		}
		if p.embedder, err = embedder.New(cfg.Embedding); err != nil {
			return nil, fmt.Errorf("plugin: embedding provider: %w", err)
		}
	}
	if p.generator == nil {
		genCfg := cfg.Generation
		if p.generator, err = provider.New(ctx, &genCfg, provider.WithCallbacks(p.handlers...)); err != nil {
			return nil, fmt.Errorf("plugin: generation provider: %w", err)
		}
	}
	if p.store == nil {
		stCfg := cfg.Storage
		if stCfg.Qdrant.VectorSize == 0 {
			stCfg.Qdrant.VectorSize = uint64(p.embedder.Dimensions())
		}
		if p.store, err = store.New(stCfg); err != nil {
			return nil, fmt.Errorf("plugin: storage provider: %w", err)
		}
	}
	if p.renderer == nil {
		if p.renderer, err = render.New(cfg.Renderer); err != nil {
			return nil, fmt.Errorf("plugin: renderer: %w", err)
		}
	}
	if p.templates == nil {
		p.templates = NewDirTemplates(cfg.Paths.Templates, BuiltinTemplates())
	}

	p.retriever, err = rag.NewRetriever(p.embedder, p.store, rag.RetrieverConfig{
		TopK:         cfg.Similarity.TopK,
		Threshold:    cfg.Similarity.Threshold,
		HasThreshold: true,
	})
	if err != nil {
		return nil, fmt.Errorf("plugin: retriever: %w", err)
	}
	p.pipeline, err = ingestion.NewPipeline(p.embedder, p.store, &ingestion.Config{Delay: cfg.IndexDelay})
	if err != nil {
		return nil, fmt.Errorf("plugin: pipeline: %w", err)
	}
	return p, nil
}

// Config returns the configuration the Plugin was built with.
func (p *Plugin) Config() Config { return p.cfg }

// Store returns the record store, for readiness probes.
func (p *Plugin) Store() rag.VectorStore { return p.store }

// Embedder returns the embedding provider.
func (p *Plugin) Embedder() rag.EmbeddingProvider { return p.embedder }

// Generator returns the generation provider.
func (p *Plugin) Generator() rag.GenerationProvider { return p.generator }

// Init initializes storage and probes the providers. Probe failures are
// logged and do not fail Init. Calling Init again is a no-op.
func (p *Plugin) Init(ctx context.Context) error {
	if !p.cfg.Enabled {
		return fmt.Errorf("plugin: init: %w", errs.ErrDisabled)
	}
	ctx = p.context(ctx)
	log := logging.FromContext(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}

	if err := p.store.Init(ctx); err != nil {
		return fmt.Errorf("plugin: init: %w", err)
	}
	if !p.embedder.IsAvailable(ctx) {
		log.Warn("embedding provider unavailable, embeddings will degrade to zero vectors",
			slog.String("provider", p.embedder.Name()))
	}
	if !p.generator.IsAvailable(ctx) {
		log.Warn("generation provider unavailable, generation will return the fallback text",
			slog.String("provider", p.generator.Name()))
	}
	p.initialized = true

	log.Info("acrecall initialized",
		slog.String("embedding", p.embedder.Name()),
		slog.Int("dimensions", p.embedder.Dimensions()),
		slog.String("generation", p.generator.Name()),
		slog.String("storage", p.store.Name()),
		slog.String("renderer", p.renderer.Name()),
	)
	return nil
}

// Close releases the store. Operations fail with NotInitialized until Init
// is called again. Closing twice is a no-op.
func (p *Plugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return nil
	}
	p.initialized = false
	if err := p.store.Close(); err != nil {
		return fmt.Errorf("plugin: close: %w", err)
	}
	return nil
}

// acquire enters an operation. The returned release must be called when
// the operation finishes; Close waits for in-flight operations.
func (p *Plugin) acquire(op string) (func(), error) {
	if !p.cfg.Enabled {
		return nil, fmt.Errorf("plugin: %s: %w", op, errs.ErrDisabled)
	}
	p.mu.RLock()
	if !p.initialized {
		p.mu.RUnlock()
		return nil, fmt.Errorf("plugin: %s: %w", op, errs.ErrNotInitialized)
	}
	return p.mu.RUnlock, nil
}

// context attaches the configured logger to ctx.
func (p *Plugin) context(ctx context.Context) context.Context {
	if p.log != nil {
		return logging.WithLogger(ctx, p.log)
	}
	return ctx
}

// Search retrieves the records most similar to query.
func (p *Plugin) Search(ctx context.Context, query string, opts ...rag.SearchOption) (*rag.Retrieval, error) {
	release, err := p.acquire("search")
	if err != nil {
		return nil, err
	}
	defer release()
	return p.retriever.Retrieve(p.context(ctx), query, opts...)
}

// Rerank boosts results by keyword overlap with query.
func (p *Plugin) Rerank(query string, results []rag.SearchResult) []rag.SearchResult {
	if p.retriever == nil {
		return results
	}
	return p.retriever.Rerank(query, results)
}

// AddRecord validates rec, embeds its text when rec.Embedding is empty,
// fills a missing creation time, and upserts it. The stored record is
// returned.
func (p *Plugin) AddRecord(ctx context.Context, rec rag.Record) (rag.Record, error) {
	release, err := p.acquire("add record")
	if err != nil {
		return rag.Record{}, err
	}
	defer release()
	ctx = p.context(ctx)

	if rec.ID == "" || rec.Text == "" {
		return rag.Record{}, errs.New(errs.CodeRequestInvalid, "plugin: add record: id and text are required")
	}
	if rec.Metadata.Type == "" {
		rec.Metadata.Type = rag.TypeAC
	}
	if !rec.Metadata.Type.Valid() {
		return rag.Record{}, errs.New(errs.CodeRequestInvalid,
			fmt.Sprintf("plugin: add record: unknown type %q", rec.Metadata.Type))
	}
	if rec.Metadata.Created.IsZero() {
		rec.Metadata.Created = time.Now().UTC()
	}
	if len(rec.Embedding) == 0 {
		emb := p.embedder.Embed(ctx, rec.Text)
		rec.Embedding = emb.Vector
	}
	if err := p.store.AddRecord(ctx, rec); err != nil {
		return rag.Record{}, fmt.Errorf("plugin: add record: %w", err)
	}
	return rec, nil
}

// ProviderStatus names a provider and reports its availability probe.
type ProviderStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Stats aggregates the record count and provider identities.
type Stats struct {
	Records    int            `json:"records"`
	Dimensions int            `json:"dimensions"`
	Embedding  ProviderStatus `json:"embedding"`
	Generation ProviderStatus `json:"generation"`
	Storage    ProviderStatus `json:"storage"`
	Renderer   ProviderStatus `json:"renderer"`
}

// Stats returns the record count and probes every provider.
func (p *Plugin) Stats(ctx context.Context) (*Stats, error) {
	release, err := p.acquire("stats")
	if err != nil {
		return nil, err
	}
	defer release()
	ctx = p.context(ctx)

	n, err := p.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("plugin: stats: %w", err)
	}
	return &Stats{
		Records:    n,
		Dimensions: p.embedder.Dimensions(),
		Embedding:  ProviderStatus{Name: p.embedder.Name(), Available: p.embedder.IsAvailable(ctx)},
		Generation: ProviderStatus{Name: p.generator.Name(), Available: p.generator.IsAvailable(ctx)},
		Storage:    ProviderStatus{Name: p.store.Name(), Available: p.store.IsAvailable(ctx)},
		Renderer:   ProviderStatus{Name: p.renderer.Name(), Available: p.renderer.IsAvailable(ctx)},
	}, nil
}
