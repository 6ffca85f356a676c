// Package provider selects and constructs the LLM backend used for text
// generation and wraps it into a rag.GenerationProvider.
// Supported backends: Ollama, OpenAI, Azure OpenAI, Google Gemini, Volcengine Ark.
package provider

import (
	"context"
	"fmt"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects Volcengine Ark.
	BackendArk Backend = "ark"
	// BackendCustom means the caller injects its own rag.GenerationProvider.
	BackendCustom Backend = "custom"
)

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Model is the model name or Azure deployment (e.g. "gpt-4o", "llama3").
	Model string

	// BaseURL overrides the default API endpoint (required for Azure).
	BaseURL string

	// APIKey is the authentication credential for the selected provider.
	APIKey string

	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string

	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32

	// TopP is the nucleus sampling cutoff. Zero leaves the backend default.
	TopP float32
}

// Validate returns an error naming the first missing setting for Backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		if c.Model == "" {
			return fmt.Errorf("provider: GENERATION_MODEL is required for ollama backend")
		}
	case BackendOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("provider: OPENAI_API_KEY or GENERATION_API_KEY is required for openai backend")
		}
		if c.Model == "" {
			return fmt.Errorf("provider: GENERATION_MODEL is required for openai backend")
		}
	case BackendAzure:
		if c.APIKey == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_API_KEY or GENERATION_API_KEY is required for azure backend")
		}
		if c.BaseURL == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_ENDPOINT or GENERATION_ENDPOINT is required for azure backend")
		}
		if c.Model == "" {
			return fmt.Errorf("provider: GENERATION_MODEL (Azure deployment) is required for azure backend")
		}
	case BackendGemini:
		if c.APIKey == "" {
			return fmt.Errorf("provider: GOOGLE_API_KEY or GENERATION_API_KEY is required for gemini backend")
		}
		if c.Model == "" {
			return fmt.Errorf("provider: GENERATION_MODEL is required for gemini backend")
		}
	case BackendArk:
		if c.APIKey == "" {
			return fmt.Errorf("provider: ARK_API_KEY or GENERATION_API_KEY is required for ark backend")
		}
		if c.Model == "" {
			return fmt.Errorf("provider: GENERATION_MODEL is required for ark backend")
		}
	case BackendCustom:
		return fmt.Errorf("provider: custom backend requires an injected generation provider")
	default:
		return fmt.Errorf("provider: unknown backend %q, valid values: ollama, openai, azure, gemini, ark, custom", c.Backend)
	}
	return nil
}

// HealthChecker is a zero-cost reachability probe for a backend. It never
// consumes tokens.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
