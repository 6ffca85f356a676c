package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/logging"
	"github.com/54b3r/acrecall/internal/rag"
)

const (
	// DefaultEmbedTimeout bounds a single embedding request.
	DefaultEmbedTimeout = 30 * time.Second
	// ProbeTimeout bounds an availability probe.
	ProbeTimeout = 3 * time.Second
)

// Pinger is implemented by backends that can report reachability cheaply.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Provider adapts a raw rag.Embedder into a rag.EmbeddingProvider. Backend
// failures never reach the caller: they become a zero vector of the
// declared dimensionality flagged Degraded.
type Provider struct {
	// name is the backend label (e.g. "ollama").
	name string
	// dims is the declared output dimensionality.
	dims int
	// backend performs the actual embedding calls.
	backend rag.Embedder
	// timeout bounds each Embed/EmbedBatch call.
	timeout time.Duration
}

// NewProvider wraps backend. dims must be positive.
func NewProvider(name string, dims int, backend rag.Embedder) (*Provider, error) {
	if backend == nil {
		return nil, fmt.Errorf("embedder: backend must not be nil")
	}
	if dims <= 0 {
		return nil, errs.New(errs.CodeConfigInvalid, "embedder: dimensions must be positive", "dimensions", dims)
	}
	return &Provider{name: name, dims: dims, backend: backend, timeout: DefaultEmbedTimeout}, nil
}

// Name returns the backend label.
func (p *Provider) Name() string { return p.name }

// Dimensions returns the declared vector size.
func (p *Provider) Dimensions() int { return p.dims }

// Embed returns the embedding for text, or a degraded zero vector.
func (p *Provider) Embed(ctx context.Context, text string) rag.Embedding {
	return p.EmbedBatch(ctx, []string{text})[0]
}

// EmbedBatch embeds texts in one backend call. When the call fails every
// entry is degraded; when a single vector has the wrong size only that
// entry is degraded.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) []rag.Embedding {
	out := make([]rag.Embedding, len(texts))
	if len(texts) == 0 {
		return out
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	vecs, err := p.backend.Embed(callCtx, texts)
	if err == nil && len(vecs) != len(texts) {
		err = errs.New(errs.CodeMalformedResponse, "embedder: result count mismatch",
			"want", len(texts), "got", len(vecs))
	}
	if err != nil {
		cause := errs.Wrap(err, errs.CodeUpstreamCallFailed, "embedder: "+p.name, "provider", p.name)
		logging.FromContext(ctx).Warn("embedding failed, using zero vector",
			slog.String("provider", p.name),
			slog.Int("texts", len(texts)),
			slog.Any("error", err),
		)
		for i := range out {
			out[i] = p.degraded(cause)
		}
		return out
	}

	for i, v := range vecs {
		if len(v) != p.dims {
			out[i] = p.degraded(errs.New(errs.CodeMalformedResponse, "embedder: dimension mismatch",
				"provider", p.name, "want", p.dims, "got", len(v)))
			continue
		}
		out[i] = rag.Embedding{Vector: v}
	}
	return out
}

func (p *Provider) degraded(cause error) rag.Embedding {
	return rag.Embedding{Vector: make([]float32, p.dims), Degraded: true, Cause: cause}
}

// IsAvailable probes the backend with ProbeTimeout. Backends without a
// Pinger are probed with a one-word embedding.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()
	if pg, ok := p.backend.(Pinger); ok {
		return pg.Ping(ctx) == nil
	}
	vecs, err := p.backend.Embed(ctx, []string{"ping"})
	return err == nil && len(vecs) == 1
}
