//go:build integration

package embedder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/acrecall/internal/rag"
)

// TestProvider_OllamaLive embeds acceptance criteria through a Provider
// backed by a running Ollama instance.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//
// Run with:
//
//	go test -tags=integration -run TestProvider_OllamaLive ./internal/embedder/
//
// OLLAMA_HOST, EMBEDDING_MODEL and EMBEDDING_DIMENSIONS are honoured.
func TestProvider_OllamaLive(t *testing.T) {
	cfg := ConfigFromEnv()
	cfg.Backend = "ollama"
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}

	p, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !p.IsAvailable(ctx) {
		t.Fatalf("ollama not reachable at %q; start it and run: ollama pull %s", cfg.Endpoint, cfg.Model)
	}

	batch := p.EmbedBatch(ctx, []string{
		"User can log in with a valid email and password",
		"Checkout shows the order total including tax",
	})
	require.Len(t, batch, 2)
	for i, e := range batch {
		require.Falsef(t, e.Degraded, "embedding[%d] degraded: %v (check EMBEDDING_DIMENSIONS)", i, e.Cause)
		assert.Len(t, e.Vector, p.Dimensions())
	}

	query := p.Embed(ctx, "sign in with email")
	require.False(t, query.Degraded, "query degraded: %v", query.Cause)

	login := rag.CosineSimilarity(query.Vector, batch[0].Vector)
	checkout := rag.CosineSimilarity(query.Vector, batch[1].Vector)
	t.Logf("model=%s dim=%d login=%.3f checkout=%.3f", cfg.Model, p.Dimensions(), login, checkout)
	assert.Greater(t, login, checkout, "login criterion should rank above checkout for a sign-in query")
}
