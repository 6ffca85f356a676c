package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/rag"
)

// backends returns a fresh, initialized instance of every embedded store.
func backends(t *testing.T) map[string]rag.VectorStore {
	t.Helper()
	out := map[string]rag.VectorStore{
		"sqlite": NewSQLite(":memory:"),
		"memory": NewMemory(),
	}
	for name, s := range out {
		if err := s.Init(context.Background()); err != nil {
			t.Fatalf("init %s: %v", name, err)
		}
		t.Cleanup(func() { _ = s.Close() })
	}
	return out
}

var created = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testRecord(id, text string, emb ...float32) rag.Record {
	return rag.Record{
		ID:         id,
		Text:       text,
		Embedding:  emb,
		SourceFile: "login.md",
		Metadata:   rag.Metadata{Created: created, Type: rag.TypeAC},
	}
}

func sameRecord(t *testing.T, want, got rag.Record) {
	t.Helper()
	if got.ID != want.ID || got.Text != want.Text || got.SourceFile != want.SourceFile {
		t.Errorf("record mismatch: want %+v, got %+v", want, got)
	}
	if !got.Metadata.Created.Equal(want.Metadata.Created) || got.Metadata.Type != want.Metadata.Type || got.Metadata.Author != want.Metadata.Author {
		t.Errorf("metadata mismatch: want %+v, got %+v", want.Metadata, got.Metadata)
	}
	if len(got.Embedding) != len(want.Embedding) {
		t.Fatalf("embedding length: want %d, got %d", len(want.Embedding), len(got.Embedding))
	}
	for i := range want.Embedding {
		if got.Embedding[i] != want.Embedding[i] {
			t.Errorf("embedding[%d]: want %v, got %v", i, want.Embedding[i], got.Embedding[i])
		}
	}
}

func Test_Store_UpsertIdempotent(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := testRecord("a-ac-1", "User can login", 0.1, 0.2, 0.3)
			r.Metadata.Author = "qa"

			for range 2 {
				if err := s.AddRecord(ctx, r); err != nil {
					t.Fatalf("add: %v", err)
				}
			}
			n, err := s.Count(ctx)
			if err != nil {
				t.Fatalf("count: %v", err)
			}
			if n != 1 {
				t.Errorf("want count 1, got %d", n)
			}
			got, ok, err := s.GetRecord(ctx, r.ID)
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			sameRecord(t, r, got)
		})
	}
}

func Test_Store_OverwriteKeepsScanOrder(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"r1", "r2", "r3"} {
				if err := s.AddRecord(ctx, testRecord(id, id, 1, 0)); err != nil {
					t.Fatalf("add: %v", err)
				}
			}
			if err := s.AddRecord(ctx, testRecord("r1", "changed", 1, 0)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			all, err := s.GetAllRecords(ctx)
			if err != nil {
				t.Fatalf("all: %v", err)
			}
			if len(all) != 3 || all[0].ID != "r1" || all[0].Text != "changed" || all[2].ID != "r3" {
				t.Errorf("unexpected scan order: %+v", all)
			}
		})
	}
}

func Test_Store_GetMissing(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.GetRecord(context.Background(), "nope")
			if err != nil {
				t.Fatalf("missing record must not error: %v", err)
			}
			if ok {
				t.Error("want ok=false for a missing id")
			}
		})
	}
}

func Test_Store_FindByTextCaseInsensitive(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = s.AddRecord(ctx, testRecord("1", "User can LOGIN", 1))
			_ = s.AddRecord(ctx, testRecord("2", "User can logout", 1))

			got, err := s.FindByText(ctx, "user can login")
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if len(got) != 1 || got[0].ID != "1" {
				t.Errorf("want exactly record 1, got %+v", got)
			}
			none, err := s.FindByText(ctx, "user can")
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if len(none) != 0 {
				t.Errorf("substring must not match, got %d", len(none))
			}
		})
	}
}

func Test_Store_DeleteAndClear(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = s.AddRecord(ctx, testRecord("1", "one", 1))
			_ = s.AddRecord(ctx, testRecord("2", "two", 1))

			if err := s.DeleteRecord(ctx, "1"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := s.DeleteRecord(ctx, "absent"); err != nil {
				t.Fatalf("deleting an absent id must be a no-op: %v", err)
			}
			if n, _ := s.Count(ctx); n != 1 {
				t.Errorf("want 1 after delete, got %d", n)
			}
			if err := s.ClearAll(ctx); err != nil {
				t.Fatalf("clear: %v", err)
			}
			if n, _ := s.Count(ctx); n != 0 {
				t.Errorf("want 0 after clear, got %d", n)
			}
		})
	}
}

func Test_Store_SearchStableTies(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = s.AddRecord(ctx, testRecord("R1", "r1", 0.9, 0.43589))
			_ = s.AddRecord(ctx, testRecord("R2", "r2", 0.9, 0.43589))
			_ = s.AddRecord(ctx, testRecord("R3", "r3", 0.8, 0.6))
			_ = s.AddRecord(ctx, testRecord("zero", "degraded", 0, 0))

			got, err := s.Search(ctx, []float32{1, 0}, 2, 0.5)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != 2 || got[0].Record.ID != "R1" || got[1].Record.ID != "R2" {
				t.Errorf("want [R1 R2], got %+v", got)
			}
		})
	}
}

func Test_Store_ClosedIsNotInitialized(t *testing.T) {
	t.Parallel()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			if s.IsAvailable(ctx) {
				t.Error("closed store must not report available")
			}
			err := s.AddRecord(ctx, testRecord("x", "x"))
			if !errors.Is(err, errs.ErrNotInitialized) {
				t.Errorf("AddRecord after close: want ErrNotInitialized, got %v", err)
			}
			if _, err := s.Count(ctx); !errs.IsNotInitialized(err) {
				t.Errorf("Count after close: want NotInitialized, got %v", err)
			}
			if _, err := s.Search(ctx, []float32{1}, 1, 0); !errs.IsNotInitialized(err) {
				t.Errorf("Search after close: want NotInitialized, got %v", err)
			}
		})
	}
}

func Test_Store_UninitializedIsNotInitialized(t *testing.T) {
	t.Parallel()
	for _, s := range []rag.VectorStore{NewSQLite(":memory:"), NewMemory(), NewQdrant(QdrantConfig{VectorSize: 2})} {
		if _, _, err := s.GetRecord(context.Background(), "x"); !errs.IsNotInitialized(err) {
			t.Errorf("%s: want NotInitialized before Init, got %v", s.Name(), err)
		}
	}
}

func Test_SQLite_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "index.db")

	s := NewSQLite(path)
	if err := s.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := s.Init(ctx); err != nil {
		t.Fatalf("second init must be a no-op: %v", err)
	}
	r := testRecord("p-ac-1", "persisted", 0.5, 0.5)
	if err := s.AddRecord(ctx, r); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := NewSQLite(path)
	if err := reopened.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	got, ok, err := reopened.GetRecord(ctx, r.ID)
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	sameRecord(t, r, got)
}

func Test_SQLite_UnopenablePath(t *testing.T) {
	t.Parallel()
	// A path beneath a regular file can never be created.
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	s := NewSQLite(file)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	_ = s.Close()

	bad := NewSQLite(filepath.Join(file, "sub", "index.db"))
	err := bad.Init(context.Background())
	if !errors.Is(err, errs.ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}
}

func TestNew_Backends(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend  Backend
		wantName string
		wantCode errs.Code
	}{
		{backend: BackendSQLite, wantName: "sqlite"},
		{backend: BackendMemory, wantName: "memory"},
		{backend: BackendQdrant, wantName: "qdrant"},
		{backend: BackendChromaDB, wantCode: errs.CodeBackendUnsupported},
		{backend: BackendCustom, wantCode: errs.CodeConfigInvalid},
		{backend: "bogus", wantCode: errs.CodeConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			t.Parallel()
			s, err := New(Config{Backend: tt.backend, Path: filepath.Join(t.TempDir(), "x.db")})
			if tt.wantCode != "" {
				if !errs.HasCode(err, tt.wantCode) {
					t.Fatalf("want code %s, got %v", tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Name() != tt.wantName {
				t.Errorf("want %s, got %s", tt.wantName, s.Name())
			}
		})
	}
}
