package ingestion

import (
	"testing"

	"github.com/54b3r/acrecall/internal/rag"
)

func TestInferMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		typ     rag.RecordType
		feature string
	}{
		// ── Tests ────────────────────────────────────────────────────────
		{name: "playwright spec", path: "tests/login.spec.ts", typ: rag.TypeTest, feature: "login"},
		{name: "jest test", path: "checkout.test.js", typ: rag.TypeTest, feature: "checkout"},
		{name: "go test", path: "/src/cart_test.go", typ: rag.TypeTest, feature: "cart"},
		{name: "bare source file", path: "helpers.ts", typ: rag.TypeTest, feature: "helpers"},
		// ── Hinted documents ─────────────────────────────────────────────
		{name: "flow", path: "checkout_flow.md", typ: rag.TypeFlow, feature: "checkout_flow"},
		{name: "journey", path: "Onboarding-Journey.txt", typ: rag.TypeFlow, feature: "Onboarding-Journey"},
		{name: "pattern", path: "timeout-patterns.txt", typ: rag.TypePattern, feature: "timeout-patterns"},
		{name: "failure log", path: "failures.md", typ: rag.TypePattern, feature: "failures"},
		{name: "requirement", path: "requirements.md", typ: rag.TypeRequirement, feature: "requirements"},
		{name: "user story", path: "story-42.md", typ: rag.TypeRequirement, feature: "story-42"},
		// ── Default ──────────────────────────────────────────────────────
		{name: "plain doc", path: "payments.md", typ: rag.TypeAC, feature: "payments"},
		{name: "no extension", path: "README", typ: rag.TypeAC, feature: "README"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := InferMetadata(tt.path)
			if got.Type != tt.typ {
				t.Errorf("Type = %q, want %q", got.Type, tt.typ)
			}
			if got.Feature != tt.feature {
				t.Errorf("Feature = %q, want %q", got.Feature, tt.feature)
			}
		})
	}
}
