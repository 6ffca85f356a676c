package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaEmbedder calls the local Ollama /api/embed endpoint. It needs no
// credentials and is safe for concurrent use.
type OllamaEmbedder struct {
	host   string
	model  string
	client *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
	// Timeout bounds each request. Defaults to DefaultEmbedTimeout.
	Timeout time.Duration
}

// NewOllamaEmbedder constructs an OllamaEmbedder from cfg.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		host:   strings.TrimRight(cfg.Host, "/"),
		model:  cfg.Model,
		client: &http.Client{Timeout: timeoutOr(cfg.Timeout)},
	}
}

// ollamaEmbedRequest is the POST /api/embed body.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the /api/embed reply, one vector per input.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// ollamaError reads Ollama's {"error": "..."} failure body.
func ollamaError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &e)
	return e.Error
}

// Embed returns one vector per text, in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	in := ollamaEmbedRequest{Model: e.model, Input: texts}
	var out ollamaEmbedResponse
	if err := postJSON(ctx, e.client, e.host+"/api/embed", nil, in, &out, ollamaError); err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: asked for %d embeddings, got %d", len(texts), len(out.Embeddings))
	}
	return out.Embeddings, nil
}

// Ping lists local models via GET /api/tags. The embedding model is not
// loaded, so the probe is cheap.
func (e *OllamaEmbedder) Ping(ctx context.Context) error {
	if err := probe(ctx, e.client, e.host+"/api/tags", nil); err != nil {
		return fmt.Errorf("ollama embedder: %w", err)
	}
	return nil
}

func timeoutOr(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultEmbedTimeout
	}
	return d
}
