package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
)

func TestSanitiseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key, value, want string
	}{
		{"GENERATION_API_KEY", "sk-abc123", "set"},
		{"QDRANT_API_KEY", "", "unset"},
		{"LANGFUSE_SECRET_KEY", "sk-lf", "set"},
		{"GENERATION_PROVIDER", "azure", "azure"},
		{"STORE_PROVIDER", "", "unset"},
	}
	for _, tt := range tests {
		if got := SanitiseKey(tt.key, tt.value); got != tt.want {
			t.Errorf("SanitiseKey(%s, %q) = %q, want %q", tt.key, tt.value, got, tt.want)
		}
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.acrecall/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.acrecall/config.yaml" {
			t.Errorf("expected '~/.acrecall/config.yaml', got %q", got)
		}
	}
}

func TestLogCommandStart_RedactsSecrets(t *testing.T) {
	t.Setenv("GENERATION_API_KEY", "sk-very-secret")
	t.Setenv("STORE_PROVIDER", "memory")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(context.Background(), log, "index", "")

	if bytes.Contains(buf.Bytes(), []byte("sk-very-secret")) {
		t.Fatalf("secret value leaked into audit log: %s", buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("audit entry is not JSON: %v", err)
	}
	if entry["command"] != "index" || entry["config_file"] != "none" {
		t.Errorf("unexpected header fields: %v", entry)
	}
	if entry["GENERATION_API_KEY"] != "set" || entry["STORE_PROVIDER"] != "memory" {
		t.Errorf("unexpected env fields: %v", entry)
	}
}
