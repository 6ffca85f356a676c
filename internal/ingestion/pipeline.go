// Package ingestion implements the requirements indexing pipeline. It scans
// a directory for requirement documents, extracts bullet acceptance
// criteria, skips ones already stored, embeds the rest, and upserts them
// into the vector store. It backs plugin.IndexRequirements and the
// `acrecall index` and `acrecall add` commands.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/acrecall/internal/logging"
	"github.com/54b3r/acrecall/internal/rag"
)

// DefaultDelay is the minimum spacing between embed calls.
const DefaultDelay = 100 * time.Millisecond

// Config holds the configuration for the indexing pipeline.
type Config struct {
	// Delay is the minimum spacing between embed calls, a courtesy to
	// remote providers. Zero selects DefaultDelay; negative disables it.
	Delay time.Duration

	// Author is stamped on every record the pipeline writes. Optional.
	Author string
}

// Report summarizes one indexing run.
type Report struct {
	// Files is the number of documents read.
	Files int `json:"files"`
	// Extracted is the number of acceptance criteria found.
	Extracted int `json:"extracted"`
	// Indexed is the number of records written.
	Indexed int `json:"indexed"`
	// Skipped is the number of criteria already present in the store.
	Skipped int `json:"skipped"`
	// Degraded is the number of records stored with a zero vector.
	Degraded int `json:"degraded"`
}

func (r *Report) add(o Report) {
	r.Files += o.Files
	r.Extracted += o.Extracted
	r.Indexed += o.Indexed
	r.Skipped += o.Skipped
	r.Degraded += o.Degraded
}

// Pipeline orchestrates the scan → extract → dedup → embed → upsert flow.
// Criteria are processed one at a time.
type Pipeline struct {
	// embedder converts criterion text into vectors.
	embedder rag.EmbeddingProvider

	// store persists the embedded records.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// limiter spaces consecutive embed calls by cfg.Delay.
	limiter *rate.Limiter

	// now is the clock used for Metadata.Created.
	now func() time.Time
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.EmbeddingProvider, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}

	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// IndexDir indexes every requirements document directly inside dir, in
// name order. It stops at the first store error; Report covers the work
// done until then. Progress is reported via the optional progress callback.
func (p *Pipeline) IndexDir(ctx context.Context, dir string, progress func(msg string)) (Report, error) {
	if progress == nil {
		progress = func(string) {}
	}

	paths, err := ScanDocuments(dir)
	if err != nil {
		return Report{}, err
	}

	var total Report
	for _, path := range paths {
		r, err := p.IndexFile(ctx, path)
		total.add(r)
		if err != nil {
			return total, err
		}
		progress(fmt.Sprintf("indexed %d of %d criteria from %s", r.Indexed, r.Extracted, filepath.Base(path)))
	}

	logging.FromContext(ctx).Info("requirements indexed",
		slog.String("dir", dir),
		slog.Int("files", total.Files),
		slog.Int("indexed", total.Indexed),
		slog.Int("skipped", total.Skipped),
		slog.Int("degraded", total.Degraded),
	)
	return total, nil
}

// IndexFile indexes the acceptance criteria of one document. Record IDs are
// "<filename>-ac-<n>" with n the 1-based position of the criterion in the
// file, so re-indexing an edited file overwrites by position.
func (p *Pipeline) IndexFile(ctx context.Context, path string) (Report, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("ingestion: read %s: %w", path, err)
	}

	name := filepath.Base(path)
	acs := ExtractACs(string(content))
	r := Report{Files: 1, Extracted: len(acs)}

	for i, ac := range acs {
		existing, err := p.store.FindByText(ctx, ac)
		if err != nil {
			return r, fmt.Errorf("ingestion: dedup lookup for %s: %w", name, err)
		}
		if len(existing) > 0 {
			r.Skipped++
			continue
		}

		rec, degraded, err := p.embedRecord(ctx, fmt.Sprintf("%s-ac-%d", name, i+1), ac, name, rag.TypeAC)
		if err != nil {
			return r, err
		}
		if err := p.store.AddRecord(ctx, rec); err != nil {
			return r, fmt.Errorf("ingestion: store %s: %w", rec.ID, err)
		}
		r.Indexed++
		if degraded {
			r.Degraded++
		}
	}
	return r, nil
}

// IngestFile stores the whole of path as a single record whose type is
// inferred from the file name unless typ is set. The record ID is the
// file name.
func (p *Pipeline) IngestFile(ctx context.Context, path string, typ rag.RecordType) (rag.Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return rag.Record{}, fmt.Errorf("ingestion: read %s: %w", path, err)
	}
	if typ == "" {
		typ = InferMetadata(path).Type
	}
	name := filepath.Base(path)
	rec, _, err := p.embedRecord(ctx, name, string(content), name, typ)
	if err != nil {
		return rag.Record{}, err
	}
	if err := p.store.AddRecord(ctx, rec); err != nil {
		return rag.Record{}, fmt.Errorf("ingestion: store %s: %w", rec.ID, err)
	}
	return rec, nil
}

// embedRecord waits for the limiter, embeds text, and builds the record.
func (p *Pipeline) embedRecord(ctx context.Context, id, text, source string, typ rag.RecordType) (rag.Record, bool, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return rag.Record{}, false, fmt.Errorf("ingestion: rate limiter: %w", err)
	}
	emb := p.embedder.Embed(ctx, text)
	return rag.Record{
		ID:         id,
		Text:       text,
		Embedding:  emb.Vector,
		SourceFile: source,
		Metadata: rag.Metadata{
			Created: p.now(),
			Author:  p.cfg.Author,
			Type:    typ,
		},
	}, emb.Degraded, nil
}
