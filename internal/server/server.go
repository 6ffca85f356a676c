// Package server implements the HTTP API that exposes the recall plugin:
// search, record management, indexing, test generation, failure analysis,
// and trace matrices. The server is started by the `acrecall serve` command.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/acrecall/internal/logging"
	"github.com/54b3r/acrecall/internal/plugin"
)

// New constructs a Server around an initialized plugin.
func New(p *plugin.Plugin, cfg *Config) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("server: plugin must not be nil")
	}
	return newServer(p, cfg), nil
}

func newServer(r recaller, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Indexing streams progress for the whole run.
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		recall:  r,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stop

	limited := func(h http.HandlerFunc) http.Handler { return rl.middleware(h) }

	mux := http.NewServeMux()
	mux.Handle("POST /api/search", limited(s.handleSearch))
	mux.Handle("POST /api/generate", limited(s.handleGenerate))
	mux.Handle("POST /api/analyze", limited(s.handleAnalyze))
	mux.Handle("POST /api/wait", limited(s.handleWait))
	mux.Handle("POST /api/trace", limited(s.handleTrace))
	mux.Handle("POST /api/index", limited(s.handleIndex))
	mux.Handle("POST /api/records", http.HandlerFunc(s.handleAddRecord))
	mux.Handle("GET /api/records", http.HandlerFunc(s.handleListRecords))
	mux.Handle("GET /api/stats", http.HandlerFunc(s.handleStats))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, s.instrument(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler. Used by tests and by
// callers embedding the API in another server.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// sseWriter emits Server-Sent Event frames on an http.ResponseWriter.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter

	// flusher flushes buffered data to the client after each write.
	flusher http.Flusher
}

// event writes one named SSE event. Each newline in data is prefixed with
// "data: " so multi-line payloads never break the frame boundary.
func (s *sseWriter) event(name, data string) {
	var buf strings.Builder
	if name != "" {
		buf.WriteString("event: ")
		buf.WriteString(name)
		buf.WriteString("\n")
	}
	for _, line := range strings.Split(strings.TrimRight(data, "\n"), "\n") {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
	_, _ = fmt.Fprint(s.w, buf.String())
	s.flusher.Flush()
}
