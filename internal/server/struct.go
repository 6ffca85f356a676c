package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/acrecall/internal/ingestion"
	"github.com/54b3r/acrecall/internal/plugin"
	"github.com/54b3r/acrecall/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover a full indexing stream.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// RequestTimeout bounds each generation-backed request
	// (generate, analyze, wait). Defaults to 2 minutes.
	RequestTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// recaller is the slice of *plugin.Plugin the handlers call. Tests inject a
// fake.
type recaller interface {
	Search(ctx context.Context, query string, opts ...rag.SearchOption) (*rag.Retrieval, error)
	Rerank(query string, results []rag.SearchResult) []rag.SearchResult
	AddRecord(ctx context.Context, rec rag.Record) (rag.Record, error)
	Records(ctx context.Context) ([]rag.Record, error)
	Stats(ctx context.Context) (*plugin.Stats, error)
	Index(ctx context.Context, dir string, progress func(string)) (ingestion.Report, error)
	GenerateTest(ctx context.Context, acText, testContext string) (*plugin.GeneratedTest, error)
	AnalyzeFailure(ctx context.Context, errorLog string) (*plugin.FailureAnalysis, error)
	EstimateWaitTime(ctx context.Context, selector string) (int, error)
	GenerateTraceMatrix(ctx context.Context, tests []plugin.TestCase) (*plugin.TraceMatrix, error)
}

// Server exposes the recall plugin over HTTP.
type Server struct {
	// recall serves every /api route except health and readiness.
	recall recaller
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the text to embed and match.
	Query string `json:"query"`
	// TopK overrides the configured result cap when positive.
	TopK int `json:"topK,omitempty"`
	// Threshold overrides the configured similarity floor when set.
	Threshold *float64 `json:"threshold,omitempty"`
	// Rerank applies the keyword-overlap boost to the results.
	Rerank bool `json:"rerank,omitempty"`
}

// searchHit is one result in a searchResponse. The embedding is omitted.
type searchHit struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	SourceFile string         `json:"sourceFile"`
	Type       rag.RecordType `json:"type"`
	Score      float64        `json:"score"`
	Boost      float64        `json:"boost,omitempty"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	Results  []searchHit `json:"results"`
	Degraded bool        `json:"degraded"`
}

// recordRequest is the JSON body for POST /api/records.
type recordRequest struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	SourceFile string         `json:"sourceFile"`
	Type       rag.RecordType `json:"type,omitempty"`
	Author     string         `json:"author,omitempty"`
}

// recordResponse is the stored form of a record. Embedded reports whether
// a non-degraded embedding was stored.
type recordResponse struct {
	ID         string       `json:"id"`
	Text       string       `json:"text"`
	SourceFile string       `json:"sourceFile"`
	Metadata   rag.Metadata `json:"metadata"`
	Dimensions int          `json:"dimensions"`
	Embedded   bool         `json:"embedded"`
}

// indexRequest is the JSON body for POST /api/index.
type indexRequest struct {
	// Dir is the directory to scan. Empty uses the configured requirements dir.
	Dir string `json:"dir"`
}

// generateRequest is the JSON body for POST /api/generate.
type generateRequest struct {
	AC      string `json:"ac"`
	Context string `json:"context,omitempty"`
}

// analyzeRequest is the JSON body for POST /api/analyze.
type analyzeRequest struct {
	Log string `json:"log"`
}

// waitRequest is the JSON body for POST /api/wait.
type waitRequest struct {
	Selector string `json:"selector"`
}

// waitResponse is the JSON response for POST /api/wait.
type waitResponse struct {
	Selector string `json:"selector"`
	WaitMs   int    `json:"waitMs"`
}

// traceRequest is the JSON body for POST /api/trace.
type traceRequest struct {
	Tests []plugin.TestCase `json:"tests"`
}

// errorResponse is the JSON body of every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
