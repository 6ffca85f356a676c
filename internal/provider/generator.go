package provider

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/acrecall/internal/budget"
	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/logging"
	"github.com/54b3r/acrecall/internal/rag"
)

const (
	// DefaultGenerateTimeout bounds a single generation request.
	DefaultGenerateTimeout = 120 * time.Second
	// ProbeTimeout bounds an availability probe.
	ProbeTimeout = 3 * time.Second
)

// Generator adapts an eino chat model into a rag.GenerationProvider.
// Any upstream failure yields rag.FallbackGeneration flagged Degraded.
type Generator struct {
	// name is the backend label (e.g. "openai").
	name string
	// model performs the actual completion calls.
	model model.BaseChatModel
	// health is the zero-cost probe; nil falls back to a one-token generate.
	health HealthChecker
	// defaults fill zero-valued fields of per-call options.
	defaults rag.GenerateOptions
	// timeout bounds each Generate call.
	timeout time.Duration
	// handlers receive eino callbacks for every call (e.g. Langfuse).
	handlers []callbacks.Handler
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithHealthCheck sets the availability probe. A nil checker is ignored.
func WithHealthCheck(hc HealthChecker) GeneratorOption {
	return func(g *Generator) {
		if hc != nil {
			g.health = hc
		}
	}
}

// WithDefaults sets the sampling parameters used when a call leaves them zero.
func WithDefaults(maxTokens int, temperature, topP float32) GeneratorOption {
	return func(g *Generator) {
		g.defaults = rag.GenerateOptions{MaxTokens: maxTokens, Temperature: temperature, TopP: topP}
	}
}

// WithTimeout overrides DefaultGenerateTimeout.
func WithTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithCallbacks attaches eino callback handlers, typically the tracing handler.
func WithCallbacks(handlers ...callbacks.Handler) GeneratorOption {
	return func(g *Generator) {
		for _, h := range handlers {
			if h != nil {
				g.handlers = append(g.handlers, h)
			}
		}
	}
}

// NewGenerator wraps cm under the given backend label.
func NewGenerator(name string, cm model.BaseChatModel, opts ...GeneratorOption) *Generator {
	g := &Generator{name: name, model: cm, timeout: DefaultGenerateTimeout}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Name returns the backend label.
func (g *Generator) Name() string { return g.name }

// CountTokens estimates the token count of text.
func (g *Generator) CountTokens(text string) int { return budget.Estimate(text) }

// Generate sends prompt as a single user message and returns the reply.
func (g *Generator) Generate(ctx context.Context, prompt string, opts rag.GenerateOptions) rag.Generation {
	log := logging.FromContext(ctx)
	msgs := []*schema.Message{schema.UserMessage(prompt)}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	callCtx = callbacks.InitCallbacks(callCtx, &callbacks.RunInfo{
		Name:      g.name,
		Type:      g.name,
		Component: components.ComponentOfChatModel,
	}, g.handlers...)

	start := time.Now()
	resp, err := g.model.Generate(callCtx, msgs, g.modelOptions(opts)...)
	if err != nil {
		return g.fallback(log, errs.Wrap(err, errs.CodeUpstreamCallFailed, "provider: generate failed", "provider", g.name))
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return g.fallback(log, errs.New(errs.CodeMalformedResponse, "provider: empty completion", "provider", g.name))
	}

	log.Debug("generation complete",
		slog.String("provider", g.name),
		slog.Int("prompt_tokens_est", budget.EstimateMessages(msgs)),
		slog.Int("completion_tokens_est", budget.Estimate(resp.Content)),
		slog.Duration("duration", time.Since(start)),
	)
	return rag.Generation{Text: resp.Content}
}

func (g *Generator) fallback(log *slog.Logger, cause error) rag.Generation {
	log.Warn("generation failed, returning fallback",
		slog.String("provider", g.name),
		slog.Any("error", cause),
	)
	return rag.Generation{Text: rag.FallbackGeneration, Degraded: true, Cause: cause}
}

// modelOptions merges opts over the generator defaults.
func (g *Generator) modelOptions(opts rag.GenerateOptions) []model.Option {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = g.defaults.MaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = g.defaults.Temperature
	}
	if opts.TopP <= 0 {
		opts.TopP = g.defaults.TopP
	}

	var out []model.Option
	if opts.MaxTokens > 0 {
		out = append(out, model.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		out = append(out, model.WithTemperature(opts.Temperature))
	}
	if opts.TopP > 0 {
		out = append(out, model.WithTopP(opts.TopP))
	}
	return out
}

// IsAvailable probes the backend within ProbeTimeout. Without a zero-cost
// health check it sends a one-token generate, which consumes tokens.
func (g *Generator) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()
	if g.health != nil {
		return g.health.HealthCheck(ctx) == nil
	}
	logging.FromContext(ctx).Warn("provider: no health check, probing with generate",
		slog.String("backend", g.name),
	)
	resp, err := g.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")}, model.WithMaxTokens(1))
	return err == nil && resp != nil
}

// HealthCheck satisfies the server readiness Pinger contract.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if g.IsAvailable(ctx) {
		return nil
	}
	return errs.New(errs.CodeProviderUnavailable, "provider: backend unreachable", "provider", g.name)
}
