package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/rag"
)

// MemoryStore is an in-process rag.VectorStore. Each instance is
// independent; nothing is shared between stores.
type MemoryStore struct {
	mu sync.RWMutex
	// open is true between Init and Close.
	open bool
	// order holds ids in first-insertion order.
	order []string
	// byID maps id to record.
	byID map[string]rag.Record
}

// NewMemory returns an uninitialized MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// Name returns "memory".
func (m *MemoryStore) Name() string { return "memory" }

// Init prepares the store. Records survive a Close/Init cycle.
func (m *MemoryStore) Init(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byID == nil {
		m.byID = make(map[string]rag.Record)
	}
	m.open = true
	return nil
}

func (m *MemoryStore) check(op string) error {
	if !m.open {
		return fmt.Errorf("store: %s: %w", op, errs.ErrNotInitialized)
	}
	return nil
}

// AddRecord upserts r, keeping its original position when overwritten.
func (m *MemoryStore) AddRecord(_ context.Context, r rag.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("add record"); err != nil {
		return err
	}
	if _, ok := m.byID[r.ID]; !ok {
		m.order = append(m.order, r.ID)
	}
	r.Embedding = slices.Clone(r.Embedding)
	m.byID[r.ID] = r
	return nil
}

// GetRecord returns the record with id.
func (m *MemoryStore) GetRecord(_ context.Context, id string) (rag.Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("get record"); err != nil {
		return rag.Record{}, false, err
	}
	r, ok := m.byID[id]
	return r, ok, nil
}

// FindByText returns every record whose text equals text, ignoring case.
func (m *MemoryStore) FindByText(ctx context.Context, text string) ([]rag.Record, error) {
	all, err := m.GetAllRecords(ctx)
	if err != nil {
		return nil, err
	}
	return matchText(all, text), nil
}

// GetAllRecords returns every record in insertion order.
func (m *MemoryStore) GetAllRecords(context.Context) ([]rag.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("get all records"); err != nil {
		return nil, err
	}
	out := make([]rag.Record, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	return out, nil
}

// Count returns the number of stored records.
func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check("count"); err != nil {
		return 0, err
	}
	return len(m.order), nil
}

// DeleteRecord removes id if present.
func (m *MemoryStore) DeleteRecord(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("delete record"); err != nil {
		return err
	}
	if _, ok := m.byID[id]; !ok {
		return nil
	}
	delete(m.byID, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return nil
}

// ClearAll removes every record.
func (m *MemoryStore) ClearAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("clear all"); err != nil {
		return err
	}
	m.order = nil
	m.byID = make(map[string]rag.Record)
	return nil
}

// Search ranks every record against query.
func (m *MemoryStore) Search(ctx context.Context, query []float32, topK int, threshold float64) ([]rag.SearchResult, error) {
	all, err := m.GetAllRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	return rag.Rank(query, all, topK, threshold), nil
}

// IsAvailable reports whether the store is open.
func (m *MemoryStore) IsAvailable(context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.open
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}
