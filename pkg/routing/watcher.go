package routing

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is how long the watcher waits after a file event
// before reloading, so editors that write in multiple steps trigger one
// reload.
const DefaultDebounceInterval = 200 * time.Millisecond

// Watcher reloads a Provider's route table when the underlying file changes.
type Watcher struct {
	provider *Provider
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher for the provider's route file.
func NewWatcher(provider *Provider, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		provider: provider,
		debounce: DefaultDebounceInterval,
		logger:   logger.With("component", "routing.watcher"),
	}
}

// Watch blocks until ctx is cancelled, reloading the route table on file
// changes. The parent directory is watched rather than the file itself so
// atomic rename-into-place writes are observed.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.provider.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	w.logger.Info("route table watcher started", "file", w.provider.path)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("route table watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.provider.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil

			if err := w.provider.Reload(); err != nil {
				w.logger.Error("route table reload failed, keeping previous table", "error", err)
				continue
			}
			w.logger.Info("route table reloaded", "routes", w.provider.Table().Len())

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn("route table watcher error", "error", err)
		}
	}
}
