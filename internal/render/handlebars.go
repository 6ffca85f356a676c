package render

import (
	"context"
	"sync"

	"github.com/aymerick/raymond"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/rag"
)

// Handlebars renders templates with raymond, so templates may use blocks
// such as {{#if}} and {{#each}} on top of plain placeholders. Parsed
// templates are cached by source.
type Handlebars struct {
	cache sync.Map // string -> *raymond.Template
}

// NewHandlebars returns a Handlebars renderer.
func NewHandlebars() *Handlebars { return &Handlebars{} }

// Name returns "handlebars".
func (*Handlebars) Name() string { return NameHandlebars }

// IsAvailable always reports true; raymond is linked in.
func (*Handlebars) IsAvailable(context.Context) bool { return true }

// Validate reports whether tpl parses as a Handlebars template.
func (h *Handlebars) Validate(tpl string) rag.Validation {
	if _, err := h.parse(tpl); err != nil {
		return rag.Validation{Error: err.Error()}
	}
	return rag.Validation{Valid: true}
}

// Render executes tpl. Plain placeholders whose key is absent from values
// render as MissingMarker(key). Values are inserted verbatim, without HTML
// escaping, because prompts routinely contain code.
func (h *Handlebars) Render(tpl string, values map[string]string) (string, error) {
	t, err := h.parse(tpl)
	if err != nil {
		return "", errs.Wrap(err, errs.CodeRequestInvalid, "render: invalid template")
	}

	ctx := make(map[string]any, len(values))
	for k, v := range values {
		ctx[k] = raymond.SafeString(v)
	}
	for _, k := range placeholders(tpl) {
		if _, ok := ctx[k]; !ok {
			ctx[k] = raymond.SafeString(MissingMarker(k))
		}
	}

	out, err := t.Exec(ctx)
	if err != nil {
		return "", errs.Wrap(err, errs.CodeRequestInvalid, "render: execute template")
	}
	return out, nil
}

func (h *Handlebars) parse(tpl string) (*raymond.Template, error) {
	if v, ok := h.cache.Load(tpl); ok {
		return v.(*raymond.Template), nil
	}
	t, err := raymond.Parse(tpl)
	if err != nil {
		return nil, err
	}
	h.cache.Store(tpl, t)
	return t, nil
}
