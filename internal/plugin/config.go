package plugin

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/acrecall/internal/embedder"
	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/ingestion"
	"github.com/54b3r/acrecall/internal/provider"
	"github.com/54b3r/acrecall/internal/rag"
	"github.com/54b3r/acrecall/internal/render"
	"github.com/54b3r/acrecall/internal/store"
)

// Mode selects where the recall subsystem runs.
type Mode string

const (
	// ModeEmbedded runs providers and the store in-process.
	ModeEmbedded Mode = "embedded"
	// ModeRemote delegates to a remote recall service. Not supported.
	ModeRemote Mode = "remote"
)

// Similarity holds the retrieval defaults.
type Similarity struct {
	// Threshold is the inclusive minimum cosine similarity.
	Threshold float64
	// TopK caps the number of results.
	TopK int
}

// Paths holds filesystem locations used by the plugin.
type Paths struct {
	// Requirements is the default directory for IndexRequirements.
	Requirements string
	// Templates is an optional directory of prompt template overrides.
	Templates string
}

// Config is the complete plugin configuration. Build it once with
// ConfigFromEnv or start from DefaultConfig; it is not mutated afterwards.
type Config struct {
	// Enabled turns the whole subsystem on or off.
	Enabled bool
	// Mode must be ModeEmbedded.
	Mode Mode
	// Embedding selects the embedding backend.
	Embedding embedder.Config
	// Generation selects the generation backend.
	Generation provider.Config
	// Storage selects the record store. Storage.Path is the index location.
	Storage store.Config
	// Renderer is "simple" or "handlebars".
	Renderer string
	// Similarity holds retrieval defaults.
	Similarity Similarity
	// Paths holds document and template locations.
	Paths Paths
	// IndexDelay spaces embed calls during indexing. Negative disables it.
	IndexDelay time.Duration
}

// DefaultConfig returns an enabled, embedded configuration backed by local
// Ollama models and the SQLite index.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Mode:       ModeEmbedded,
		Embedding:  embedder.Config{Backend: "ollama"},
		Generation: provider.Config{Backend: provider.BackendOllama, Model: "llama3", MaxTokens: 1024, Temperature: 0.2},
		Storage:    store.Config{Backend: store.BackendSQLite},
		Renderer:   render.NameSimple,
		Similarity: Similarity{Threshold: rag.DefaultThreshold, TopK: rag.DefaultTopK},
		Paths:      Paths{Requirements: "./requirements"},
		IndexDelay: ingestion.DefaultDelay,
	}
}

// ConfigFromEnv builds a Config from environment variables on top of
// DefaultConfig.
//
//	ACRECALL_ENABLED      true | false (default: true)
//	ACRECALL_MODE         embedded | remote (default: embedded)
//	EMBEDDING_*           see embedder.ConfigFromEnv
//	GENERATION_*          see provider.ConfigFromEnv
//	STORE_PROVIDER        sqlite | memory | qdrant | chromadb | custom (default: sqlite)
//	STORE_PATH            SQLite index file (default: ~/.acrecall/index.db)
//	QDRANT_HOST, QDRANT_PORT, QDRANT_COLLECTION, QDRANT_API_KEY, QDRANT_TLS
//	RENDERER              simple | handlebars (default: simple)
//	SIMILARITY_THRESHOLD  (default: 0.75)
//	SIMILARITY_TOP_K      (default: 5)
//	REQUIREMENTS_DIR      (default: ./requirements)
//	TEMPLATES_DIR         optional template overrides
//	INDEX_DELAY           Go duration or milliseconds (default: 100ms)
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.Enabled = getEnvBool("ACRECALL_ENABLED", cfg.Enabled)
	cfg.Mode = Mode(strings.ToLower(getEnvOrDefault("ACRECALL_MODE", string(cfg.Mode))))
	cfg.Embedding = embedder.ConfigFromEnv()
	cfg.Generation = *provider.ConfigFromEnv()
	cfg.Storage = store.Config{
		Backend: store.Backend(strings.ToLower(getEnvOrDefault("STORE_PROVIDER", string(store.BackendSQLite)))),
		Path:    os.Getenv("STORE_PATH"),
		Qdrant: store.QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       getEnvInt("QDRANT_PORT", 0),
			Collection: os.Getenv("QDRANT_COLLECTION"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     getEnvBool("QDRANT_TLS", false),
		},
	}
	cfg.Renderer = getEnvOrDefault("RENDERER", cfg.Renderer)
	cfg.Similarity.Threshold = getEnvFloat("SIMILARITY_THRESHOLD", cfg.Similarity.Threshold)
	cfg.Similarity.TopK = getEnvInt("SIMILARITY_TOP_K", cfg.Similarity.TopK)
	cfg.Paths.Requirements = getEnvOrDefault("REQUIREMENTS_DIR", cfg.Paths.Requirements)
	cfg.Paths.Templates = os.Getenv("TEMPLATES_DIR")
	cfg.IndexDelay = getEnvDuration("INDEX_DELAY", cfg.IndexDelay)
	return cfg
}

// Validate checks the settings the plugin itself owns. Backend-specific
// settings are validated by the respective factories.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeEmbedded, "":
	case ModeRemote:
		return errs.New(errs.CodeBackendUnsupported, "plugin: remote mode is not supported, use embedded")
	default:
		return errs.New(errs.CodeConfigInvalid, fmt.Sprintf("plugin: unknown mode %q", c.Mode))
	}
	if c.Similarity.Threshold < -1 || c.Similarity.Threshold > 1 {
		return errs.New(errs.CodeConfigInvalid, "plugin: similarity threshold must be within [-1, 1]",
			"threshold", c.Similarity.Threshold)
	}
	if c.Similarity.TopK <= 0 {
		return errs.New(errs.CodeConfigInvalid, "plugin: similarity topK must be positive", "topK", c.Similarity.TopK)
	}
	return nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts a Go duration ("250ms") or a bare millisecond count.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
