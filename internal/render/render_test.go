package render_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/rag"
	"github.com/54b3r/acrecall/internal/render"
)

func renderers() []rag.PromptRenderer {
	return []rag.PromptRenderer{render.NewSimple(), render.NewHandlebars()}
}

func TestRender_SubstitutesValues(t *testing.T) {
	t.Parallel()

	for _, r := range renderers() {
		t.Run(r.Name(), func(t *testing.T) {
			t.Parallel()
			out, err := r.Render("AC: {{ac}}\nContext: {{ context }}", map[string]string{
				"ac":      "User can log in",
				"context": "await page.click('#submit') && a < b",
			})
			require.NoError(t, err)
			assert.Equal(t, "AC: User can log in\nContext: await page.click('#submit') && a < b", out)
		})
	}
}

func TestRender_MissingKeyIsVisible(t *testing.T) {
	t.Parallel()

	for _, r := range renderers() {
		t.Run(r.Name(), func(t *testing.T) {
			t.Parallel()
			out, err := r.Render("Write a test for {{ac}} using {{examples}}.", map[string]string{"ac": "checkout"})
			require.NoError(t, err)
			assert.Equal(t, "Write a test for checkout using <missing:examples>.", out)
		})
	}
}

func TestSimple_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tpl     string
		valid   bool
		wantErr string
	}{
		{name: "balanced", tpl: "{{a}} and {{b}}", valid: true},
		{name: "no placeholders", tpl: "plain text", valid: true},
		{name: "unclosed", tpl: "hello {{name", wantErr: "unclosed"},
		{name: "unmatched close", tpl: "hello name}}", wantErr: "unmatched"},
		{name: "nested", tpl: "{{a {{b}} }}", wantErr: "nested"},
		{name: "empty", tpl: "{{ }}", wantErr: "empty placeholder"},
		{name: "padded key", tpl: "{{ user_name }} {{ac.text}}", valid: true},
		{name: "key with space", tpl: "hi {{ user name }}", wantErr: "invalid placeholder key"},
		{name: "key with punctuation", tpl: "{{user!}}", wantErr: "invalid placeholder key"},
	}
	r := render.NewSimple()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := r.Validate(tt.tpl)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.wantErr != "" {
				assert.Contains(t, got.Error, tt.wantErr)
			}
		})
	}
}

func TestSimple_RenderRejectsMalformed(t *testing.T) {
	t.Parallel()

	_, err := render.NewSimple().Render("{{broken", nil)
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeRequestInvalid))
}

func TestSimple_RenderRejectsUnknownKeySyntax(t *testing.T) {
	t.Parallel()

	out, err := render.NewSimple().Render("Hello {{ user name }}", map[string]string{"user": "x"})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeRequestInvalid))
	assert.Empty(t, out)
}

func TestHandlebars_Blocks(t *testing.T) {
	t.Parallel()

	r := render.NewHandlebars()
	tpl := "{{#if examples}}Examples:\n{{examples}}{{else}}No examples.{{/if}}"

	out, err := r.Render(tpl, map[string]string{"examples": "test(1)"})
	require.NoError(t, err)
	assert.Equal(t, "Examples:\ntest(1)", out)

	assert.True(t, r.Validate(tpl).Valid)
	assert.False(t, r.Validate("{{#if x}}open").Valid)
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "simple", "handlebars", "HANDLEBARS"} {
		r, err := render.New(name)
		require.NoError(t, err, name)
		assert.True(t, r.IsAvailable(context.Background()))
	}
	_, err := render.New("jinja")
	assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
}
