// Package render implements rag.PromptRenderer: {{key}} placeholder
// substitution for prompt templates. Two variants exist, an in-house simple
// renderer and a Handlebars renderer backed by aymerick/raymond.
package render

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/rag"
)

// Renderer names accepted by New.
const (
	NameSimple     = "simple"
	NameHandlebars = "handlebars"
)

// placeholderRe matches a {{key}} placeholder, tolerating inner whitespace.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// keyRe matches the full inner text of a placeholder placeholderRe accepts.
var keyRe = regexp.MustCompile(`^\s*[A-Za-z0-9_.\-]+\s*$`)

// MissingMarker returns the text substituted for a key absent from values.
func MissingMarker(key string) string { return "<missing:" + key + ">" }

// New returns the renderer registered under name. Empty selects simple.
func New(name string) (rag.PromptRenderer, error) {
	switch strings.ToLower(name) {
	case "", NameSimple:
		return NewSimple(), nil
	case NameHandlebars:
		return NewHandlebars(), nil
	default:
		return nil, errs.New(errs.CodeConfigInvalid,
			fmt.Sprintf("render: unknown renderer %q, valid values: simple, handlebars", name))
	}
}

// Simple substitutes {{key}} placeholders and nothing else.
type Simple struct{}

// NewSimple returns a Simple renderer.
func NewSimple() *Simple { return &Simple{} }

// Name returns "simple".
func (*Simple) Name() string { return NameSimple }

// IsAvailable always reports true; Simple has no external dependency.
func (*Simple) IsAvailable(context.Context) bool { return true }

// Validate checks that every {{ is closed by }} before the next {{ opens
// and that each placeholder holds a single key Render can substitute.
func (*Simple) Validate(tpl string) rag.Validation {
	if err := checkDelimiters(tpl); err != nil {
		return rag.Validation{Error: err.Error()}
	}
	return rag.Validation{Valid: true}
}

// Render replaces each placeholder with values[key], or MissingMarker(key)
// when the key is absent. Malformed templates are rejected.
func (s *Simple) Render(tpl string, values map[string]string) (string, error) {
	if err := checkDelimiters(tpl); err != nil {
		return "", errs.Wrap(err, errs.CodeRequestInvalid, "render: invalid template")
	}
	return placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		if v, ok := values[key]; ok {
			return v
		}
		return MissingMarker(key)
	}), nil
}

// checkDelimiters reports the first unbalanced or nested delimiter, or the
// first placeholder whose key Render would not recognise.
func checkDelimiters(tpl string) error {
	open := -1
	for i := 0; i < len(tpl)-1; i++ {
		switch tpl[i : i+2] {
		case "{{":
			if open >= 0 {
				return fmt.Errorf("nested '{{' at offset %d", i)
			}
			open = i
			i++
		case "}}":
			if open < 0 {
				return fmt.Errorf("unmatched '}}' at offset %d", i)
			}
			inner := tpl[open+2 : i]
			if strings.TrimSpace(inner) == "" {
				return fmt.Errorf("empty placeholder at offset %d", open)
			}
			if !keyRe.MatchString(inner) {
				return fmt.Errorf("invalid placeholder key %q at offset %d", strings.TrimSpace(inner), open)
			}
			open = -1
			i++
		}
	}
	if open >= 0 {
		return fmt.Errorf("unclosed '{{' at offset %d", open)
	}
	return nil
}

// placeholders returns the distinct simple keys referenced by tpl.
func placeholders(tpl string) []string {
	seen := map[string]bool{}
	var keys []string
	for _, m := range placeholderRe.FindAllStringSubmatch(tpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}
