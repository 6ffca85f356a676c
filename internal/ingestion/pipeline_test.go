package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/54b3r/acrecall/internal/rag"
	"github.com/54b3r/acrecall/internal/store"
)

// lenEmbedder embeds text as a 2-d vector derived from its length.
type lenEmbedder struct {
	degraded bool
	calls    int
}

func (e *lenEmbedder) Name() string    { return "len" }
func (e *lenEmbedder) Dimensions() int { return 2 }
func (e *lenEmbedder) Embed(_ context.Context, text string) rag.Embedding {
	e.calls++
	if e.degraded {
		return rag.Embedding{Vector: make([]float32, 2), Degraded: true}
	}
	return rag.Embedding{Vector: []float32{float32(len(text)), 1}}
}
func (e *lenEmbedder) EmbedBatch(ctx context.Context, texts []string) []rag.Embedding {
	out := make([]rag.Embedding, len(texts))
	for i, t := range texts {
		out[i] = e.Embed(ctx, t)
	}
	return out
}
func (e *lenEmbedder) IsAvailable(context.Context) bool { return true }

func newTestPipeline(t *testing.T, emb rag.EmbeddingProvider) (*Pipeline, rag.VectorStore) {
	t.Helper()
	st := store.NewMemory()
	if err := st.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	p, err := NewPipeline(emb, st, &Config{Delay: -1, Author: "qa"})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p, st
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPipeline_IndexDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "login.md", "# Login\n- User can log in\n- User sees an error\n  for a wrong password\n- User can log out\n")
	p, st := newTestPipeline(t, &lenEmbedder{})

	var msgs []string
	r, err := p.IndexDir(context.Background(), dir, func(m string) { msgs = append(msgs, m) })
	if err != nil {
		t.Fatalf("IndexDir: %v", err)
	}
	if r.Indexed != 3 || r.Extracted != 3 || r.Files != 1 {
		t.Fatalf("unexpected report %+v", r)
	}
	if len(msgs) != 1 {
		t.Errorf("want one progress message, got %v", msgs)
	}

	all, err := st.GetAllRecords(context.Background())
	if err != nil {
		t.Fatalf("GetAllRecords: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 records, got %d", len(all))
	}
	for i, rec := range all {
		if rec.SourceFile != "login.md" || rec.Metadata.Type != rag.TypeAC || rec.Metadata.Author != "qa" {
			t.Errorf("record %d has unexpected provenance %+v", i, rec)
		}
	}
	if all[1].ID != "login.md-ac-2" || all[1].Text != "User sees an error for a wrong password" {
		t.Errorf("unexpected second record %s %q", all[1].ID, all[1].Text)
	}
}

func TestPipeline_SkipsDuplicates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.md", "- User can log in\n")
	writeFile(t, dir, "b.md", "- USER CAN LOG IN\n- Cart shows total\n")
	emb := &lenEmbedder{}
	p, st := newTestPipeline(t, emb)

	r, err := p.IndexDir(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("IndexDir: %v", err)
	}
	if r.Indexed != 2 || r.Skipped != 1 {
		t.Fatalf("want 2 indexed / 1 skipped, got %+v", r)
	}

	again, err := p.IndexDir(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("IndexDir: %v", err)
	}
	if again.Indexed != 0 || again.Skipped != 3 {
		t.Errorf("second run must skip everything, got %+v", again)
	}
	if emb.calls != 2 {
		t.Errorf("skipped criteria must not be embedded, got %d calls", emb.calls)
	}

	matches, err := st.FindByText(context.Background(), "user can log in")
	if err != nil || len(matches) != 1 {
		t.Errorf("want exactly one match, got %d (%v)", len(matches), err)
	}
}

func TestPipeline_DegradedEmbeddingsAreStored(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "r.txt", "- one\n- two\n")
	p, st := newTestPipeline(t, &lenEmbedder{degraded: true})

	r, err := p.IndexDir(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("IndexDir: %v", err)
	}
	if r.Indexed != 2 || r.Degraded != 2 {
		t.Errorf("unexpected report %+v", r)
	}
	if n, _ := st.Count(context.Background()); n != 2 {
		t.Errorf("want 2 stored, got %d", n)
	}
}

func TestPipeline_IngestFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "login.spec.ts", "test('login', async () => {})")
	p, st := newTestPipeline(t, &lenEmbedder{})

	rec, err := p.IngestFile(context.Background(), path, "")
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if rec.ID != "login.spec.ts" || rec.Metadata.Type != rag.TypeTest {
		t.Errorf("unexpected record %+v", rec)
	}
	if _, ok, _ := st.GetRecord(context.Background(), "login.spec.ts"); !ok {
		t.Error("record not stored")
	}

	flow, err := p.IngestFile(context.Background(), path, rag.TypeFlow)
	if err != nil || flow.Metadata.Type != rag.TypeFlow {
		t.Errorf("explicit type must win, got %+v (%v)", flow, err)
	}
}

func TestPipeline_CanceledContext(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.md", "- one\n- two\n")
	st := store.NewMemory()
	_ = st.Init(context.Background())
	p, err := NewPipeline(&lenEmbedder{}, st, &Config{Delay: time.Hour})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r, err := p.IndexDir(ctx, dir, nil)
	if err == nil {
		t.Fatal("want limiter error once the context expires")
	}
	if r.Indexed != 1 {
		t.Errorf("first criterion passes the burst, want 1 indexed, got %d", r.Indexed)
	}
}

func TestNewPipeline_NilDeps(t *testing.T) {
	t.Parallel()
	if _, err := NewPipeline(nil, store.NewMemory(), nil); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewPipeline(&lenEmbedder{}, nil, nil); err == nil {
		t.Error("want error for nil store")
	}
}
