package store

import (
	"fmt"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/rag"
)

// Backend enumerates the recognized storage providers.
type Backend string

const (
	// BackendSQLite selects the persistent single-file index (default).
	BackendSQLite Backend = "sqlite"
	// BackendMemory selects an in-process store that is lost on exit.
	BackendMemory Backend = "memory"
	// BackendQdrant selects a remote Qdrant collection.
	BackendQdrant Backend = "qdrant"
	// BackendChromaDB is recognized in configuration but not implemented.
	BackendChromaDB Backend = "chromadb"
	// BackendCustom means the caller injects its own rag.VectorStore.
	BackendCustom Backend = "custom"
)

// Config selects and parameterizes a store.
type Config struct {
	// Backend selects the implementation (default: sqlite).
	Backend Backend
	// Path is the SQLite file path. Empty selects DefaultDBPath.
	Path string
	// Qdrant holds Qdrant connection settings.
	Qdrant QdrantConfig
}

// New constructs an uninitialized store for cfg. Callers must call Init.
func New(cfg Config) (rag.VectorStore, error) {
	switch cfg.Backend {
	case BackendSQLite, "":
		path := cfg.Path
		if path == "" {
			p, err := DefaultDBPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewSQLite(path), nil
	case BackendMemory:
		return NewMemory(), nil
	case BackendQdrant:
		return NewQdrant(cfg.Qdrant), nil
	case BackendChromaDB:
		return nil, errs.New(errs.CodeBackendUnsupported,
			"store: chromadb backend is not supported, use sqlite, memory, or qdrant", "backend", string(cfg.Backend))
	case BackendCustom:
		return nil, errs.New(errs.CodeConfigInvalid,
			"store: custom backend requires an injected store", "backend", string(cfg.Backend))
	default:
		return nil, errs.New(errs.CodeConfigInvalid,
			fmt.Sprintf("store: unknown backend %q, valid values: sqlite, memory, qdrant, chromadb, custom", cfg.Backend))
	}
}
