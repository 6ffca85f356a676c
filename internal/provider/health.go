package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const geminiModelsURL = "https://generativelanguage.googleapis.com/v1beta/models"

// httpHealthCheck issues a GET against a listing endpoint of the backend.
// Listing endpoints are free, so readiness probes never burn tokens.
type httpHealthCheck struct {
	url    string
	header http.Header
	client *http.Client
}

// NewHealthCheck returns the zero-cost probe for cfg.Backend, or nil when
// the backend has no listing endpoint (ark). Callers must handle nil.
func NewHealthCheck(cfg *Config) HealthChecker {
	h := http.Header{}
	var target string
	switch cfg.Backend {
	case BackendOllama:
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		target = strings.TrimRight(base, "/") + "/api/tags"
	case BackendOpenAI:
		base := cfg.BaseURL
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		target = strings.TrimRight(base, "/") + "/models"
		h.Set("Authorization", "Bearer "+cfg.APIKey)
	case BackendAzure:
		target = strings.TrimRight(cfg.BaseURL, "/") + "/openai/models?api-version=" + url.QueryEscape(cfg.AzureAPIVersion)
		h.Set("api-key", cfg.APIKey)
	case BackendGemini:
		target = geminiModelsURL
		h.Set("x-goog-api-key", cfg.APIKey)
	default:
		return nil
	}
	return &httpHealthCheck{url: target, header: h, client: http.DefaultClient}
}

// HealthCheck returns nil when the endpoint answers 2xx.
func (c *httpHealthCheck) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("provider: health check: build request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("provider: health check: status %d", resp.StatusCode)
	}
	return nil
}
