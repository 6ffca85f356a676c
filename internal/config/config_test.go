package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
enabled: false
generation:
  provider: azure
  model: gpt-4o
  max_tokens: 2048
  temperature: 0.3
  endpoint: https://my-resource.openai.azure.com
embedding:
  provider: ollama
  model: nomic-embed-text
storage:
  provider: qdrant
  qdrant:
    host: qdrant.internal
    port: 6334
    collection: criteria
retrieval:
  threshold: 0.8
  top_k: 3
  renderer: handlebars
  index_delay: 250ms
paths:
  requirements: ./docs/requirements
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	checks := map[string]string{
		"ACRECALL_ENABLED":       "false",
		"GENERATION_PROVIDER":    "azure",
		"GENERATION_MODEL":       "gpt-4o",
		"GENERATION_MAX_TOKENS":  "2048",
		"GENERATION_TEMPERATURE": "0.3",
		"GENERATION_ENDPOINT":    "https://my-resource.openai.azure.com",
		"EMBEDDING_PROVIDER":     "ollama",
		"EMBEDDING_MODEL":        "nomic-embed-text",
		"STORE_PROVIDER":         "qdrant",
		"QDRANT_HOST":            "qdrant.internal",
		"QDRANT_PORT":            "6334",
		"QDRANT_COLLECTION":      "criteria",
		"SIMILARITY_THRESHOLD":   "0.8",
		"SIMILARITY_TOP_K":       "3",
		"RENDERER":               "handlebars",
		"INDEX_DELAY":            "250ms",
		"REQUIREMENTS_DIR":       "./docs/requirements",
		"LOG_LEVEL":              "debug",
		"LOG_FORMAT":             "text",
	}
	// Clear env vars that the YAML should set.
	for k := range checks {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
generation:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GENERATION_PROVIDER", "azure")

	log := slog.Default()
	if _, err := Load(cfgPath, log); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("GENERATION_PROVIDER"); got != "azure" {
		t.Errorf("GENERATION_PROVIDER: expected env override %q, got %q", "azure", got)
	}
}

func TestLoad_ConfigEnvVar(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "acrecall.yaml")
	if err := os.WriteFile(cfgPath, []byte("mode: embedded\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ACRECALL_CONFIG", cfgPath)
	t.Setenv("ACRECALL_MODE", "")
	os.Unsetenv("ACRECALL_MODE")

	loaded, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("ACRECALL_MODE"); got != "embedded" {
		t.Errorf("ACRECALL_MODE: got %q, want embedded", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := slog.Default()
	if _, err := Load(cfgPath, log); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOptBoolStr(t *testing.T) {
	t.Parallel()
	f, tr := false, true
	if got := optBoolStr(nil); got != "" {
		t.Errorf("nil: got %q", got)
	}
	if got := optBoolStr(&f); got != "false" {
		t.Errorf("false: got %q", got)
	}
	if got := optBoolStr(&tr); got != "true" {
		t.Errorf("true: got %q", got)
	}
}
