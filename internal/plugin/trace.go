package plugin

import (
	"context"
	"fmt"
	"sort"

	"github.com/54b3r/acrecall/internal/rag"
)

// FindRelatedTests returns the texts of the records most similar to text.
func (p *Plugin) FindRelatedTests(ctx context.Context, text string) ([]string, error) {
	ret, err := p.Search(ctx, text)
	if err != nil {
		return nil, err
	}
	return ret.Texts(), nil
}

// FindAffectedTests returns the texts of records likely touched by a change
// description. Results are reranked by keyword overlap with changeText.
func (p *Plugin) FindAffectedTests(ctx context.Context, changeText string) ([]string, error) {
	ret, err := p.Search(ctx, changeText)
	if err != nil {
		return nil, err
	}
	ret.Results = p.Rerank(changeText, ret.Results)
	return ret.Texts(), nil
}

// traceableTypes are the record types a test can be traced back to.
var traceableTypes = map[rag.RecordType]bool{
	rag.TypeAC:          true,
	rag.TypeRequirement: true,
	rag.TypeFlow:        true,
}

// GetTraceable returns the requirement-side records (acceptance criteria,
// requirements, flows) that testCode most likely covers, best first.
func (p *Plugin) GetTraceable(ctx context.Context, testCode string) ([]rag.SearchResult, error) {
	ret, err := p.Search(ctx, testCode)
	if err != nil {
		return nil, err
	}
	out := make([]rag.SearchResult, 0, len(ret.Results))
	for _, r := range ret.Results {
		if traceableTypes[r.Record.Metadata.Type] {
			out = append(out, r)
		}
	}
	return out, nil
}

// TestCase names a test and carries its source.
type TestCase struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// TraceLink ties a test to one record it covers.
type TraceLink struct {
	RecordID   string  `json:"recordId"`
	SourceFile string  `json:"sourceFile"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// TraceRow is the set of links for one test.
type TraceRow struct {
	Test  string      `json:"test"`
	Links []TraceLink `json:"links"`
}

// TraceMatrix maps tests to the acceptance criteria they cover.
type TraceMatrix struct {
	Rows []TraceRow `json:"rows"`
	// Uncovered lists the IDs of acceptance criteria no test links to.
	Uncovered []string `json:"uncovered"`
	// Coverage is the covered fraction of acceptance criteria, 0 when none exist.
	Coverage float64 `json:"coverage"`
}

// GenerateTraceMatrix links every test to its traceable records and
// reports acceptance criteria left uncovered. Rows follow the order of
// tests.
func (p *Plugin) GenerateTraceMatrix(ctx context.Context, tests []TestCase) (*TraceMatrix, error) {
	m := &TraceMatrix{Rows: make([]TraceRow, 0, len(tests))}
	covered := map[string]bool{}

	for _, tc := range tests {
		results, err := p.GetTraceable(ctx, tc.Code)
		if err != nil {
			return nil, fmt.Errorf("plugin: trace matrix: %s: %w", tc.Name, err)
		}
		row := TraceRow{Test: tc.Name, Links: make([]TraceLink, 0, len(results))}
		for _, r := range results {
			row.Links = append(row.Links, TraceLink{
				RecordID:   r.Record.ID,
				SourceFile: r.Record.SourceFile,
				Text:       r.Record.Text,
				Score:      r.Score,
			})
			covered[r.Record.ID] = true
		}
		m.Rows = append(m.Rows, row)
	}

	all, err := p.allRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("plugin: trace matrix: %w", err)
	}
	total := 0
	for _, rec := range all {
		if rec.Metadata.Type != rag.TypeAC {
			continue
		}
		total++
		if !covered[rec.ID] {
			m.Uncovered = append(m.Uncovered, rec.ID)
		}
	}
	sort.Strings(m.Uncovered)
	if total > 0 {
		m.Coverage = float64(total-len(m.Uncovered)) / float64(total)
	}
	return m, nil
}

func (p *Plugin) allRecords(ctx context.Context) ([]rag.Record, error) {
	release, err := p.acquire("list records")
	if err != nil {
		return nil, err
	}
	defer release()
	return p.store.GetAllRecords(p.context(ctx))
}

// Records returns every stored record in insertion order.
func (p *Plugin) Records(ctx context.Context) ([]rag.Record, error) {
	return p.allRecords(ctx)
}
