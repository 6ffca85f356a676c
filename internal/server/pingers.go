package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/provider"
)

// ProviderPinger probes a generation or embedding backend through its
// zero-cost health check. It satisfies the Pinger interface.
type ProviderPinger struct {
	// check is the backend probe.
	check provider.HealthChecker
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewProviderPinger constructs a ProviderPinger. *provider.Generator
// satisfies provider.HealthChecker.
func NewProviderPinger(check provider.HealthChecker, name string) *ProviderPinger {
	return &ProviderPinger{check: check, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *ProviderPinger) Name() string { return p.name }

// Ping runs the backend health check.
func (p *ProviderPinger) Ping(ctx context.Context) error {
	if err := p.check.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%s health check failed: %w", p.name, err)
	}
	return nil
}

// availability is implemented by every rag provider and store.
type availability interface {
	Name() string
	IsAvailable(ctx context.Context) bool
}

// AvailabilityPinger adapts a provider's IsAvailable probe to Pinger.
type AvailabilityPinger struct {
	target availability
}

// NewAvailabilityPinger wraps target, typically the record store or the
// embedding provider.
func NewAvailabilityPinger(target availability) *AvailabilityPinger {
	return &AvailabilityPinger{target: target}
}

// Name returns the target's name.
func (p *AvailabilityPinger) Name() string { return p.target.Name() }

// Ping reports ProviderUnavailable when the target's probe fails.
func (p *AvailabilityPinger) Ping(ctx context.Context) error {
	if !p.target.IsAvailable(ctx) {
		return errs.Wrap(errors.New("probe returned false"), errs.CodeProviderUnavailable,
			"server: "+p.target.Name()+" unavailable")
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("health check failed: %w", errs.ErrNotInitialized)
	}
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
