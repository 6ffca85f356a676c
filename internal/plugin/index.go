package plugin

import (
	"context"
	"fmt"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/ingestion"
	"github.com/54b3r/acrecall/internal/rag"
)

// IndexRequirements indexes the acceptance criteria of every requirements
// document directly inside dir and returns how many records were written.
// An empty dir selects Config.Paths.Requirements.
func (p *Plugin) IndexRequirements(ctx context.Context, dir string) (int, error) {
	r, err := p.Index(ctx, dir, nil)
	return r.Indexed, err
}

// Index is IndexRequirements with the full report and progress messages.
func (p *Plugin) Index(ctx context.Context, dir string, progress func(string)) (ingestion.Report, error) {
	release, err := p.acquire("index requirements")
	if err != nil {
		return ingestion.Report{}, err
	}
	defer release()

	if dir == "" {
		dir = p.cfg.Paths.Requirements
	}
	if dir == "" {
		return ingestion.Report{}, errs.New(errs.CodeRequestInvalid, "plugin: index requirements: no directory given")
	}
	r, err := p.pipeline.IndexDir(p.context(ctx), dir, progress)
	if err != nil {
		return r, fmt.Errorf("plugin: index requirements: %w", err)
	}
	return r, nil
}

// IndexFile indexes a single requirements document. Used by watch mode.
func (p *Plugin) IndexFile(ctx context.Context, path string) (ingestion.Report, error) {
	release, err := p.acquire("index file")
	if err != nil {
		return ingestion.Report{}, err
	}
	defer release()

	r, err := p.pipeline.IndexFile(p.context(ctx), path)
	if err != nil {
		return r, fmt.Errorf("plugin: index file: %w", err)
	}
	return r, nil
}

// AddFile stores a whole file (typically an existing test) as one record.
// An empty typ is inferred from the file name.
func (p *Plugin) AddFile(ctx context.Context, path string, typ rag.RecordType) (rag.Record, error) {
	release, err := p.acquire("add file")
	if err != nil {
		return rag.Record{}, err
	}
	defer release()

	if typ != "" && !typ.Valid() {
		return rag.Record{}, errs.New(errs.CodeRequestInvalid, fmt.Sprintf("plugin: add file: unknown type %q", typ))
	}
	rec, err := p.pipeline.IngestFile(p.context(ctx), path, typ)
	if err != nil {
		return rag.Record{}, fmt.Errorf("plugin: add file: %w", err)
	}
	return rec, nil
}
