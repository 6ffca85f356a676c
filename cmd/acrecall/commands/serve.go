package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/acrecall/internal/logging"
	"github.com/54b3r/acrecall/internal/plugin"
	"github.com/54b3r/acrecall/internal/provider"
	"github.com/54b3r/acrecall/internal/server"
	"github.com/54b3r/acrecall/internal/store"
)

// NewServeCmd constructs the `acrecall serve` command, which exposes the
// recall operations over HTTP.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the acrecall HTTP API",
		Long: `Start the acrecall HTTP API on localhost.

The server exposes search, record management, indexing (streamed as SSE),
test generation, failure analysis, wait estimation, and traceability as a
JSON API, plus /api/health, /api/ready, and Prometheus /metrics.

The API is unauthenticated; bind it to a trusted interface.

Examples:
  acrecall serve
  acrecall serve --port 9090
  STORE_PROVIDER=qdrant acrecall serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)

			p, cleanup, err := openPlugin(ctx)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			log.Info("plugin initialised",
				slog.String("generation", p.Generator().Name()),
				slog.String("embedding", p.Embedder().Name()),
				slog.String("store", p.Store().Name()),
			)

			// The config file may set these after flag defaults were computed.
			if !cmd.Flags().Changed("host") {
				host = envOr("ACRECALL_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = envIntOr("ACRECALL_PORT", port)
			}
			rateLimit, _ := strconv.ParseFloat(os.Getenv("ACRECALL_RATE_LIMIT"), 64)
			srv, err := server.New(p, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   buildPingers(p),
				RateLimit: rateLimit,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}

// buildPingers returns the readiness probes for the plugin's providers.
func buildPingers(p *plugin.Plugin) []server.Pinger {
	var pingers []server.Pinger
	if hc, ok := p.Generator().(provider.HealthChecker); ok {
		pingers = append(pingers, server.NewProviderPinger(hc, p.Generator().Name()))
	}
	pingers = append(pingers, server.NewAvailabilityPinger(p.Embedder()))
	if qs, ok := p.Store().(*store.QdrantStore); ok {
		pingers = append(pingers, server.NewQdrantPinger(qs.Client()))
	} else {
		pingers = append(pingers, server.NewAvailabilityPinger(p.Store()))
	}
	return pingers
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}
