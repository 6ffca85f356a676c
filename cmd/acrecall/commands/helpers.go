package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/54b3r/acrecall/internal/logging"
	"github.com/54b3r/acrecall/internal/plugin"
	"github.com/54b3r/acrecall/internal/tracing"
)

// openPlugin builds and initializes a Plugin from the environment. The
// returned cleanup closes the store and flushes pending traces.
func openPlugin(ctx context.Context) (*plugin.Plugin, func(), error) {
	log := logging.FromContext(ctx)

	opts := []plugin.Option{plugin.WithLogger(log)}
	handler, flush, ok := tracing.Setup(tracing.ConfigFromEnv())
	if ok {
		opts = append(opts, plugin.WithCallbacks(handler))
		log.Debug("langfuse tracing enabled")
	}

	p, err := plugin.New(ctx, plugin.ConfigFromEnv(), opts...)
	if err != nil {
		flush()
		return nil, nil, err
	}
	if err := p.Init(ctx); err != nil {
		flush()
		return nil, nil, err
	}
	cleanup := func() {
		if err := p.Close(); err != nil {
			log.Warn("close failed", slog.Any("error", err))
		}
		flush()
	}
	return p, cleanup, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// readInput returns the contents of path, or of stdin when path is empty
// or "-" and stdin is piped.
func readInput(path string) (string, error) {
	if path != "" && path != "-" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %q: %w", path, err)
		}
		return string(data), nil
	}
	stat, err := os.Stdin.Stat()
	if err != nil {
		return "", fmt.Errorf("stat stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}
