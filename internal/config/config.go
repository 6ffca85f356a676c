// Package config provides YAML-based configuration for acrecall.
// Configuration is layered: defaults, then a YAML file, then env vars.
// Environment variables always win.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. ACRECALL_CONFIG environment variable
//  3. ~/.acrecall/config.yaml
//  4. ./acrecall.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Enabled turns the recall subsystem on or off. A pointer so that an
	// explicit false in YAML is distinguishable from an absent key.
	Enabled *bool `yaml:"enabled"`

	// Mode is embedded or remote.
	Mode string `yaml:"mode"`

	// Generation configures the text generation provider.
	Generation GenerationConfig `yaml:"generation"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Storage configures the record store.
	Storage StorageConfig `yaml:"storage"`

	// Retrieval configures similarity search defaults and prompt rendering.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Paths configures document and template locations.
	Paths PathsConfig `yaml:"paths"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// GenerationConfig holds text generation settings.
type GenerationConfig struct {
	// Provider selects the backend: ollama, openai, azure, gemini, ark.
	Provider string `yaml:"provider"`
	// Model is the model or deployment name.
	Model string `yaml:"model"`
	// Endpoint overrides the provider base URL.
	Endpoint string `yaml:"endpoint"`
	// APIKey is the provider key. Prefer env var GENERATION_API_KEY.
	APIKey string `yaml:"api_key"`
	// MaxTokens caps the reply length.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls response randomness (0.0-1.0).
	Temperature float32 `yaml:"temperature"`
	// TopP is the nucleus sampling cutoff.
	TopP float32 `yaml:"top_p"`
	// AzureAPIVersion is the Azure OpenAI API version.
	AzureAPIVersion string `yaml:"azure_api_version"`
	// OllamaHost is the Ollama API endpoint shared with embeddings.
	OllamaHost string `yaml:"ollama_host"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// StorageConfig holds record store settings.
type StorageConfig struct {
	// Provider is sqlite, memory, qdrant, chromadb, or custom.
	Provider string `yaml:"provider"`
	// Path is the SQLite index file.
	Path string `yaml:"path"`
	// Qdrant holds Qdrant connection settings.
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// RetrievalConfig holds search defaults.
type RetrievalConfig struct {
	// Threshold is the minimum cosine similarity. Zero means the default;
	// a real zero threshold must be set through SIMILARITY_THRESHOLD.
	Threshold float64 `yaml:"threshold"`
	// TopK caps result counts.
	TopK int `yaml:"top_k"`
	// Renderer is simple or handlebars.
	Renderer string `yaml:"renderer"`
	// IndexDelay spaces embed calls during indexing, as a Go duration.
	IndexDelay string `yaml:"index_delay"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	// Requirements is the default indexing directory.
	Requirements string `yaml:"requirements"`
	// Templates holds prompt template overrides.
	Templates string `yaml:"templates"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// RateLimit is the per-IP search requests per minute.
	RateLimit int `yaml:"rate_limit"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"ACRECALL_ENABLED", func(c *Config) string { return optBoolStr(c.Enabled) }},
	{"ACRECALL_MODE", func(c *Config) string { return c.Mode }},
	{"GENERATION_PROVIDER", func(c *Config) string { return c.Generation.Provider }},
	{"GENERATION_MODEL", func(c *Config) string { return c.Generation.Model }},
	{"GENERATION_ENDPOINT", func(c *Config) string { return c.Generation.Endpoint }},
	{"GENERATION_API_KEY", func(c *Config) string { return c.Generation.APIKey }},
	{"GENERATION_MAX_TOKENS", func(c *Config) string { return intStr(c.Generation.MaxTokens) }},
	{"GENERATION_TEMPERATURE", func(c *Config) string { return float32Str(c.Generation.Temperature) }},
	{"GENERATION_TOP_P", func(c *Config) string { return float32Str(c.Generation.TopP) }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Generation.AzureAPIVersion }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Generation.OllamaHost }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"STORE_PROVIDER", func(c *Config) string { return c.Storage.Provider }},
	{"STORE_PATH", func(c *Config) string { return c.Storage.Path }},
	{"QDRANT_HOST", func(c *Config) string { return c.Storage.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Storage.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Storage.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Storage.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Storage.Qdrant.TLS) }},
	{"SIMILARITY_THRESHOLD", func(c *Config) string { return float64Str(c.Retrieval.Threshold) }},
	{"SIMILARITY_TOP_K", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"RENDERER", func(c *Config) string { return c.Retrieval.Renderer }},
	{"INDEX_DELAY", func(c *Config) string { return c.Retrieval.IndexDelay }},
	{"REQUIREMENTS_DIR", func(c *Config) string { return c.Paths.Requirements }},
	{"TEMPLATES_DIR", func(c *Config) string { return c.Paths.Templates }},
	{"ACRECALL_HOST", func(c *Config) string { return c.Server.Host }},
	{"ACRECALL_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"ACRECALL_RATE_LIMIT", func(c *Config) string { return intStr(c.Server.RateLimit) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set
		}
		if err := os.Setenv(m.envKey, yamlVal); err != nil {
			return "", fmt.Errorf("config: set %s: %w", m.envKey, err)
		}
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("ACRECALL_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".acrecall", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("acrecall.yaml"); err == nil {
		return "acrecall.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

func float64Str(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}

// optBoolStr renders an explicitly set bool, "" when absent.
func optBoolStr(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
