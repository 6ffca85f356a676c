package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/acrecall/internal/errs"
)

// ConfigFromEnv builds a Config from environment variables.
//
//	GENERATION_PROVIDER     = ollama | openai | azure | gemini | ark (default: ollama)
//	GENERATION_MODEL        model or deployment name (ollama default: llama3)
//	GENERATION_ENDPOINT     base URL; falls back to OLLAMA_HOST / AZURE_OPENAI_ENDPOINT
//	GENERATION_API_KEY      falls back to OPENAI_API_KEY / AZURE_OPENAI_API_KEY /
//	                        GOOGLE_API_KEY / ARK_API_KEY
//	GENERATION_MAX_TOKENS   (default: 1024)
//	GENERATION_TEMPERATURE  (default: 0.2)
//	GENERATION_TOP_P        (default: backend default)
//	AZURE_OPENAI_API_VERSION (default: 2024-02-01)
func ConfigFromEnv() *Config {
	cfg := &Config{
		Backend:         Backend(getEnvOrDefault("GENERATION_PROVIDER", string(BackendOllama))),
		Model:           os.Getenv("GENERATION_MODEL"),
		BaseURL:         os.Getenv("GENERATION_ENDPOINT"),
		APIKey:          os.Getenv("GENERATION_API_KEY"),
		AzureAPIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		MaxTokens:       getEnvInt("GENERATION_MAX_TOKENS", 1024),
		Temperature:     getEnvFloat32("GENERATION_TEMPERATURE", 0.2),
		TopP:            getEnvFloat32("GENERATION_TOP_P", 0),
	}

	fallbackKey := map[Backend]string{
		BackendOpenAI: "OPENAI_API_KEY",
		BackendAzure:  "AZURE_OPENAI_API_KEY",
		BackendGemini: "GOOGLE_API_KEY",
		BackendArk:    "ARK_API_KEY",
	}
	if cfg.APIKey == "" {
		if k, ok := fallbackKey[cfg.Backend]; ok {
			cfg.APIKey = os.Getenv(k)
		}
	}

	switch cfg.Backend {
	case BackendOllama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		if cfg.Model == "" {
			cfg.Model = "llama3"
		}
	case BackendAzure:
		if cfg.BaseURL == "" {
			cfg.BaseURL = os.Getenv("AZURE_OPENAI_ENDPOINT")
		}
	}
	return cfg
}

// NewChatModel constructs the eino chat model for cfg. It validates the
// config first so callers get a clear error at startup rather than on the
// first request.
func NewChatModel(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(err, errs.CodeConfigInvalid, "provider: invalid config", "backend", string(cfg.Backend))
	}
	switch cfg.Backend {
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendAzure:
		return newAzure(ctx, cfg)
	case BackendGemini:
		return newGemini(ctx, cfg)
	case BackendArk:
		return newArk(ctx, cfg)
	default:
		return nil, fmt.Errorf("provider: unknown backend %q", cfg.Backend)
	}
}

// New constructs a Generator for cfg: the eino chat model plus the matching
// zero-cost health check.
func New(ctx context.Context, cfg *Config, opts ...GeneratorOption) (*Generator, error) {
	cm, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]GeneratorOption{
		WithHealthCheck(NewHealthCheck(cfg)),
		WithDefaults(cfg.MaxTokens, cfg.Temperature, cfg.TopP),
	}, opts...)
	return NewGenerator(string(cfg.Backend), cm, opts...), nil
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

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
