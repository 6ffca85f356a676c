package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/54b3r/acrecall/internal/errs"
)

// Template names.
const (
	TemplateLogin    = "login"
	TemplateCheckout = "checkout"
	TemplateDefault  = "default"
	TemplateWait     = "wait"
)

// TemplateSource supplies raw prompt templates by name.
type TemplateSource interface {
	Template(name string) (string, error)
}

// StaticTemplates is an in-memory TemplateSource.
type StaticTemplates map[string]string

// Template returns the template registered under name.
func (s StaticTemplates) Template(name string) (string, error) {
	if t, ok := s[name]; ok {
		return t, nil
	}
	return "", errs.New(errs.CodeRequestInvalid, fmt.Sprintf("plugin: unknown template %q", name))
}

// BuiltinTemplates returns the templates shipped with the binary.
func BuiltinTemplates() StaticTemplates {
	return StaticTemplates{
		TemplateLogin:    loginTemplate,
		TemplateCheckout: checkoutTemplate,
		TemplateDefault:  defaultTemplate,
		TemplateWait:     waitTemplate,
	}
}

const loginTemplate = `You are a senior QA engineer writing Playwright tests in TypeScript.
Write one test for this authentication acceptance criterion:

{{ac}}

Assert on the visible outcome of the login attempt and on session state.

Test context:
{{context}}

Similar existing records:
{{references}}

Return only the test code.`

const checkoutTemplate = `You are a senior QA engineer writing Playwright tests in TypeScript.
Write one test for this checkout acceptance criterion:

{{ac}}

Assert on cart contents and order totals where the criterion mentions them.

Test context:
{{context}}

Similar existing records:
{{references}}

Return only the test code.`

const defaultTemplate = `You are a senior QA engineer writing Playwright tests in TypeScript.
Write one test for this acceptance criterion:

{{ac}}

Test context:
{{context}}

Similar existing records:
{{references}}

Return only the test code.`

const waitTemplate = `Estimate how many milliseconds a UI test should wait for an element to become ready.
Answer with a single integer and nothing else.

Selector: #submit-button
Wait: 2000

Selector: .search-results .result-item
Wait: 5000

Selector: [data-testid="payment-confirmation"]
Wait: 10000

Selector: {{selector}}
Wait:`

// templateExts are tried in order when loading a template from disk.
var templateExts = []string{".hbs", ".tpl", ".txt", ".md"}

// DirTemplates loads "<dir>/<name><ext>" and falls back to another source
// when no file exists.
type DirTemplates struct {
	dir      string
	fallback TemplateSource
}

// NewDirTemplates returns a TemplateSource reading from dir. An empty dir
// serves the fallback only.
func NewDirTemplates(dir string, fallback TemplateSource) *DirTemplates {
	return &DirTemplates{dir: dir, fallback: fallback}
}

// Template returns the file template for name, or the fallback's.
func (d *DirTemplates) Template(name string) (string, error) {
	if d.dir != "" {
		for _, ext := range templateExts {
			b, err := os.ReadFile(filepath.Join(d.dir, name+ext))
			if err == nil {
				return strings.TrimRight(string(b), "\n"), nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("plugin: read template %s: %w", name, err)
			}
		}
	}
	if d.fallback == nil {
		return "", errs.New(errs.CodeRequestInvalid, fmt.Sprintf("plugin: unknown template %q", name))
	}
	return d.fallback.Template(name)
}

// selectTemplate picks a generation template by keyword sniffing on the
// acceptance criterion.
func selectTemplate(ac string) string {
	lower := strings.ToLower(ac)
	switch {
	case strings.Contains(lower, "login"), strings.Contains(lower, "auth"):
		return TemplateLogin
	case strings.Contains(lower, "checkout"), strings.Contains(lower, "order"):
		return TemplateCheckout
	default:
		return TemplateDefault
	}
}
