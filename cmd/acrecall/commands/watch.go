package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/54b3r/acrecall/internal/ingestion"
	"github.com/54b3r/acrecall/internal/logging"
)

// watchDebounce coalesces the burst of events editors emit for one save.
const watchDebounce = 300 * time.Millisecond

// watchDocuments calls index for every requirements document in dir that
// is created or written, until ctx is cancelled. Index errors are logged
// and do not stop the watch.
func watchDocuments(ctx context.Context, dir string, index func(path string) error) error {
	log := logging.FromContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Warn("watch: close watcher", slog.Any("error", err))
		}
	}()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch: add %q: %w", dir, err)
	}

	pending := map[string]time.Time{}
	ticker := time.NewTicker(watchDebounce / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !ingestion.IsDocument(ev.Name) || filepath.Dir(ev.Name) != filepath.Clean(dir) {
				continue
			}
			pending[ev.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch: watcher error", slog.Any("error", err))

		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < watchDebounce {
					continue
				}
				delete(pending, path)
				if err := index(path); err != nil {
					log.Error("watch: index failed", slog.String("path", path), slog.Any("error", err))
				}
			}
		}
	}
}
