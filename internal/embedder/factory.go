package embedder

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/acrecall/internal/errs"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ, override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Config selects and parameterizes an embedding backend.
type Config struct {
	// Backend is ollama, openai, or azure. "custom" is reserved for an
	// injected provider and rejected here.
	Backend string
	// Endpoint is the API base URL. Defaults per backend.
	Endpoint string
	// Model is the embedding model (or Azure deployment) name.
	Model string
	// APIKey authenticates against hosted APIs.
	APIKey string
	// Dimensions is the declared vector size. Defaults per backend.
	Dimensions int
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
}

// DefaultDimensions returns the default embedding vector size for backend.
func DefaultDimensions(backend string) int {
	if backend == "ollama" || backend == "" {
		return defaultOllamaDimensions
	}
	return defaultOpenAIDimensions
}

// ConfigFromEnv reads embedding settings from the environment.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER (default: ollama)
//  2. EMBEDDING_MODEL, EMBEDDING_ENDPOINT, EMBEDDING_API_KEY
//  3. backend-native fallbacks: OLLAMA_HOST, OPENAI_API_KEY,
//     AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_VERSION
//  4. EMBEDDING_DIMENSIONS (ollama: 768, openai/azure: 1536)
func ConfigFromEnv() Config {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")
	cfg := Config{
		Backend:    backend,
		Endpoint:   os.Getenv("EMBEDDING_ENDPOINT"),
		Model:      os.Getenv("EMBEDDING_MODEL"),
		APIKey:     os.Getenv("EMBEDDING_API_KEY"),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
	}
	switch backend {
	case "ollama":
		if cfg.Endpoint == "" {
			cfg.Endpoint = os.Getenv("OLLAMA_HOST")
		}
	case "openai":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "azure":
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
		}
	}
	return cfg
}

// New constructs a Provider for cfg after filling backend defaults.
func New(cfg Config) (*Provider, error) {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions(cfg.Backend)
	}

	switch cfg.Backend {
	case "ollama", "":
		host := cfg.Endpoint
		if host == "" {
			host = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return NewProvider("ollama", cfg.Dimensions, NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model}))

	case "openai":
		if cfg.APIKey == "" {
			return nil, errs.New(errs.CodeConfigInvalid, "embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		baseURL := cfg.Endpoint
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewProvider("openai", cfg.Dimensions, NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
		}))

	case "azure":
		if cfg.APIKey == "" {
			return nil, errs.New(errs.CodeConfigInvalid, "embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.Endpoint == "" {
			return nil, errs.New(errs.CodeConfigInvalid, "embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewProvider("azure", cfg.Dimensions, NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    strings.TrimRight(cfg.Endpoint, "/") + "/openai",
			APIKey:     cfg.APIKey,
			Model:      model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.APIVersion,
		}))

	case "custom":
		return nil, errs.New(errs.CodeConfigInvalid, "embedder: custom backend requires an injected provider")

	default:
		return nil, errs.New(errs.CodeConfigInvalid,
			fmt.Sprintf("embedder: unknown backend %q, valid values: ollama, openai, azure, custom", cfg.Backend))
	}
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
