// Package embedder turns text into vectors. The backends (OpenAI, Azure
// OpenAI, Ollama) talk plain HTTP and satisfy rag.Embedder; [Provider] wraps
// one of them into a rag.EmbeddingProvider that degrades to a zero vector
// instead of failing when the backend is down.
package embedder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OpenAIEmbedder calls the OpenAI embeddings API, or its Azure deployment
// flavour when configured for Azure. It is safe for concurrent use.
type OpenAIEmbedder struct {
	base       string
	model      string
	dimensions int
	azure      bool
	apiVersion string
	header     http.Header
	client     *http.Client
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is "https://api.openai.com/v1" for OpenAI or
	// "https://<resource>.openai.azure.com/openai" for Azure.
	BaseURL string
	APIKey  string
	// Model is the embedding model, or the deployment name on Azure.
	Model string
	// Dimensions requests a shortened vector. 0 keeps the model default.
	Dimensions int
	// Azure switches to api-key auth and deployment-scoped URLs.
	Azure bool
	// APIVersion is the Azure api-version query value. Ignored otherwise.
	APIVersion string
	// Timeout bounds each request. Defaults to DefaultEmbedTimeout.
	Timeout time.Duration
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from cfg.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	h := http.Header{}
	if cfg.Azure {
		h.Set("api-key", cfg.APIKey)
	} else {
		h.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return &OpenAIEmbedder{
		base:       strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		azure:      cfg.Azure,
		apiVersion: cfg.APIVersion,
		header:     h,
		client:     &http.Client{Timeout: timeoutOr(cfg.Timeout)},
	}
}

// endpoint returns the URL for path, scoped to the deployment on Azure.
func (e *OpenAIEmbedder) endpoint(path string, deployment bool) string {
	if !e.azure {
		return e.base + path
	}
	u := e.base
	if deployment {
		u += "/deployments/" + url.PathEscape(e.model)
	}
	return u + path + "?api-version=" + url.QueryEscape(e.apiVersion)
}

// openAIError reads the {"error": {"message": "..."}} failure body.
func openAIError(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &e)
	return e.Error.Message
}

// Embed returns one vector per text, in input order. The API may answer
// out of order, so results are placed by their index field.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	in := struct {
		Input      []string `json:"input"`
		Model      string   `json:"model"`
		Dimensions int      `json:"dimensions,omitempty"`
	}{Input: texts, Model: e.model, Dimensions: e.dimensions}
	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := postJSON(ctx, e.client, e.endpoint("/embeddings", true), e.header, in, &out, openAIError); err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: asked for %d embeddings, got %d", len(texts), len(out.Data))
	}

	vecs := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embedder: index %d out of range [0, %d)", d.Index, len(texts))
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// Ping lists models (GET /models), which checks the endpoint and the key
// without spending tokens.
func (e *OpenAIEmbedder) Ping(ctx context.Context) error {
	if err := probe(ctx, e.client, e.endpoint("/models", false), e.header); err != nil {
		return fmt.Errorf("openai embedder: %w", err)
	}
	return nil
}
