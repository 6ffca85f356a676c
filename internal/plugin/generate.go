package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/acrecall/internal/budget"
	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/logging"
	"github.com/54b3r/acrecall/internal/rag"
)

// generateReferences is the number of similar records used as examples.
const generateReferences = 3

// GeneratedTest is the outcome of GenerateTest.
type GeneratedTest struct {
	// Code is the generated test, or rag.FallbackGeneration.
	Code string `json:"code"`
	// TopScore is the similarity of the best reference, 0 without references.
	TopScore float64 `json:"topScore"`
	// Reasoning names the template and reference count.
	Reasoning string `json:"reasoning"`
	// Template is the selected template name.
	Template string `json:"template"`
	// References are the records used as examples, best first.
	References []rag.SearchResult `json:"references,omitempty"`
	// Degraded is true when retrieval or generation fell back to a sentinel.
	Degraded bool `json:"degraded,omitempty"`
}

// GenerateTest writes a test for acText. The template is chosen by keyword
// (login/auth, checkout/order, otherwise default) and up to three similar
// records are included as examples.
func (p *Plugin) GenerateTest(ctx context.Context, acText, testContext string) (*GeneratedTest, error) {
	release, err := p.acquire("generate test")
	if err != nil {
		return nil, err
	}
	defer release()
	ctx = p.context(ctx)

	if strings.TrimSpace(acText) == "" {
		return nil, errs.New(errs.CodeRequestInvalid, "plugin: generate test: acceptance criterion is empty")
	}

	name := selectTemplate(acText)
	tpl, err := p.templates.Template(name)
	if err != nil {
		return nil, fmt.Errorf("plugin: generate test: %w", err)
	}
	if v := p.renderer.Validate(tpl); !v.Valid {
		return nil, errs.New(errs.CodeRequestInvalid, "plugin: generate test: invalid template",
			"template", name, "reason", v.Error)
	}

	ret, err := p.retriever.Retrieve(ctx, acText, rag.WithTopK(generateReferences))
	if err != nil {
		return nil, fmt.Errorf("plugin: generate test: %w", err)
	}

	refs := budget.TrimReferences(tpl+acText+testContext, ret.Texts(), budget.DefaultMaxContextTokens)
	prompt, err := p.renderer.Render(tpl, map[string]string{
		"ac":         acText,
		"context":    orNone(testContext),
		"references": orNone(formatReferences(refs)),
	})
	if err != nil {
		return nil, fmt.Errorf("plugin: generate test: %w", err)
	}

	gen := p.generator.Generate(ctx, prompt, rag.GenerateOptions{})

	out := &GeneratedTest{
		Code:       gen.Text,
		Template:   name,
		References: ret.Results,
		Degraded:   ret.Degraded || gen.Degraded,
	}
	if len(ret.Results) > 0 {
		out.TopScore = ret.Results[0].Score
	}
	out.Reasoning = fmt.Sprintf("Used %q template with %d similar reference(s)", name, len(refs))
	if len(refs) > 0 {
		out.Reasoning += fmt.Sprintf(", top similarity %.2f", out.TopScore)
	}

	logging.FromContext(ctx).Info("test generated",
		slog.String("template", name),
		slog.Int("references", len(refs)),
		slog.Float64("top_score", out.TopScore),
		slog.Bool("degraded", out.Degraded),
	)
	return out, nil
}

// formatReferences renders reference texts as a numbered list.
func formatReferences(refs []string) string {
	var b strings.Builder
	for i, r := range refs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
