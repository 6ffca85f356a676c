package plugin

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/acrecall/internal/errs"
	"github.com/54b3r/acrecall/internal/store"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ACRECALL_ENABLED", "false")
	t.Setenv("ACRECALL_MODE", "EMBEDDED")
	t.Setenv("STORE_PROVIDER", "qdrant")
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("QDRANT_PORT", "6400")
	t.Setenv("QDRANT_TLS", "true")
	t.Setenv("RENDERER", "handlebars")
	t.Setenv("SIMILARITY_THRESHOLD", "0.6")
	t.Setenv("SIMILARITY_TOP_K", "not-a-number")
	t.Setenv("REQUIREMENTS_DIR", "/docs/reqs")
	t.Setenv("INDEX_DELAY", "250")

	cfg := ConfigFromEnv()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, ModeEmbedded, cfg.Mode)
	assert.Equal(t, store.BackendQdrant, cfg.Storage.Backend)
	assert.Equal(t, "qdrant.internal", cfg.Storage.Qdrant.Host)
	assert.Equal(t, 6400, cfg.Storage.Qdrant.Port)
	assert.True(t, cfg.Storage.Qdrant.UseTLS)
	assert.Equal(t, "handlebars", cfg.Renderer)
	assert.InDelta(t, 0.6, cfg.Similarity.Threshold, 1e-9)
	assert.Equal(t, 5, cfg.Similarity.TopK, "unparseable value keeps the default")
	assert.Equal(t, "/docs/reqs", cfg.Paths.Requirements)
	assert.Equal(t, 250*time.Millisecond, cfg.IndexDelay)
}

func TestConfigFromEnv_DurationSyntax(t *testing.T) {
	t.Setenv("INDEX_DELAY", "1s")
	assert.Equal(t, time.Second, ConfigFromEnv().IndexDelay)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		code   errs.Code
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "remote", mutate: func(c *Config) { c.Mode = ModeRemote }, code: errs.CodeBackendUnsupported},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "cloud" }, code: errs.CodeConfigInvalid},
		{name: "threshold too high", mutate: func(c *Config) { c.Similarity.Threshold = 1.5 }, code: errs.CodeConfigInvalid},
		{name: "zero topK", mutate: func(c *Config) { c.Similarity.TopK = 0 }, code: errs.CodeConfigInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errs.HasCode(err, tt.code), "want %s, got %v", tt.code, err)
		})
	}
}

func TestDirTemplates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "login.hbs"), []byte("custom {{ac}}\n\n"), 0o600))

	src := NewDirTemplates(dir, BuiltinTemplates())
	got, err := src.Template(TemplateLogin)
	require.NoError(t, err)
	assert.Equal(t, "custom {{ac}}", got)

	got, err = src.Template(TemplateCheckout)
	require.NoError(t, err)
	assert.Contains(t, got, "checkout acceptance criterion")

	_, err = src.Template("missing")
	assert.True(t, errs.HasCode(err, errs.CodeRequestInvalid))

	_, err = NewDirTemplates(dir, nil).Template(TemplateDefault)
	assert.Error(t, err)
}

func TestSelectTemplate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TemplateLogin, selectTemplate("User can LOGIN"))
	assert.Equal(t, TemplateLogin, selectTemplate("Authentication uses SSO"))
	assert.Equal(t, TemplateCheckout, selectTemplate("Checkout applies coupons"))
	assert.Equal(t, TemplateCheckout, selectTemplate("Order history lists purchases"))
	assert.Equal(t, TemplateDefault, selectTemplate("Search suggests products"))
}

func TestParseWaitMs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 800, parseWaitMs("800"))
	assert.Equal(t, 800, parseWaitMs("about 800 ms"))
	assert.Equal(t, DefaultWaitMs, parseWaitMs(""))
	assert.Equal(t, DefaultWaitMs, parseWaitMs("99999999999999999999999"))
}
