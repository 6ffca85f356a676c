package tracing

import "testing"

func TestSetup_Disabled(t *testing.T) {
	t.Parallel()

	h, flush, ok := Setup(Config{PublicKey: "pk-only"})
	if ok || h != nil {
		t.Fatalf("expected tracing disabled without a secret key, got ok=%v handler=%v", ok, h)
	}
	flush()
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk")
	t.Setenv("LANGFUSE_SECRET_KEY", "sk")
	t.Setenv("LANGFUSE_HOST", "https://lf.example")

	cfg := ConfigFromEnv()
	if !cfg.Enabled() || cfg.Host != "https://lf.example" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}
