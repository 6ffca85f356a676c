package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/logging"
)

// probeTimeout bounds each dependency probe during a readiness check.
const probeTimeout = 5 * time.Second

// Pinger is a dependency that can report its own reachability. Ping is
// called concurrently with other pingers and must return nil when healthy.
type Pinger interface {
	Ping(ctx context.Context) error
	// Name labels the dependency in readiness responses (e.g. "sqlite").
	Name() string
}

// readyCheck is the outcome of one dependency probe.
type readyCheck struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	// Error and Code describe the failure. Both are empty on success.
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
	// LatencyMs is how long the probe took.
	LatencyMs int64 `json:"latencyMs"`
}

// readyResponse is the JSON body returned by GET /api/ready.
type readyResponse struct {
	// Ready is true only when every probe succeeded.
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// handleReady handles GET /api/ready. All pingers are probed concurrently,
// each under probeTimeout, and the checks are reported in registration
// order. Any failure yields 503. /api/health stays liveness-only.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	checks := make([]readyCheck, len(s.pingers))
	var wg sync.WaitGroup
	for i, p := range s.pingers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(ctx)
			c := readyCheck{Name: p.Name(), OK: err == nil, LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				c.Error = err.Error()
				c.Code = string(errs.CodeOf(err))
				log.Warn("readiness probe failed", slog.String("dependency", c.Name), slog.Any("error", err))
			}
			checks[i] = c
		}()
	}
	wg.Wait()

	resp := readyResponse{Ready: true, Checks: checks}
	for _, c := range checks {
		resp.Ready = resp.Ready && c.OK
	}
	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}
