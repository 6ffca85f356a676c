package ingestion

import (
	"path/filepath"
	"strings"

	"github.com/54b3r/acrecall/internal/rag"
)

// InferredMetadata holds the record type and feature name inferred from a
// file name. Explicit CLI flags take precedence over inferred values; this
// is the best-effort fallback when the user doesn't specify them.
type InferredMetadata struct {
	// Type classifies the file content.
	Type rag.RecordType
	// Feature is the file stem with test/spec suffixes removed (e.g. "login").
	Feature string
}

// testMarkers are stem suffixes that identify test files.
var testMarkers = []string{".spec", ".test", "_test", "-test", "_spec", "-spec"}

// nameHints maps a lower-case file name fragment to a record type. Checked
// in order; the first hit wins.
var nameHints = []struct {
	fragment string
	typ      rag.RecordType
}{
	{"flow", rag.TypeFlow},
	{"journey", rag.TypeFlow},
	{"pattern", rag.TypePattern},
	{"failure", rag.TypePattern},
	{"incident", rag.TypePattern},
	{"requirement", rag.TypeRequirement},
	{"story", rag.TypeRequirement},
	{"prd", rag.TypeRequirement},
}

// codeExts are source extensions treated as tests when no hint matches.
var codeExts = map[string]bool{
	".ts": true, ".js": true, ".tsx": true, ".jsx": true, ".go": true,
	".py": true, ".java": true, ".cs": true, ".rb": true, ".feature": true,
}

// InferMetadata inspects path and returns best-effort metadata. Unknown
// names default to rag.TypeAC.
//
// Examples:
//
//	login.spec.ts        → test, "login"
//	checkout_flow.md     → flow, "checkout_flow"
//	timeout-patterns.txt → pattern, "timeout-patterns"
//	payments.md          → ac, "payments"
func InferMetadata(path string) InferredMetadata {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	lower := strings.ToLower(stem)

	m := InferredMetadata{Type: rag.TypeAC, Feature: stem}

	for _, marker := range testMarkers {
		if strings.HasSuffix(lower, marker) {
			m.Type = rag.TypeTest
			m.Feature = stem[:len(stem)-len(marker)]
			return m
		}
	}
	for _, h := range nameHints {
		if strings.Contains(lower, h.fragment) {
			m.Type = h.typ
			return m
		}
	}
	if codeExts[ext] {
		m.Type = rag.TypeTest
	}
	return m
}
