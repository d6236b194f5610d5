package planwatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay quiet before it is reloaded.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a Library whenever plan files in a directory change.
type Watcher struct {
	lib      *Library
	dir      string
	debounce time.Duration
	logger   *zap.Logger
}

// NewWatcher returns a Watcher for dir. A non-positive debounce uses DefaultDebounce.
func NewWatcher(lib *Library, dir string, debounce time.Duration, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{lib: lib, dir: dir, debounce: debounce, logger: logger}
}

// Run loads the directory, then applies changes until ctx is cancelled.
//
// Postcondition: Returns nil when ctx is cancelled, or an error if the directory
// cannot be watched.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("planwatch.Watcher.Run: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("planwatch.Watcher.Run: watching %s: %w", w.dir, err)
	}
	if _, err := w.lib.LoadDir(ctx, w.dir); err != nil {
		return err
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isPlanFile(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("plan watcher error", zap.Error(err))
		case <-timer.C:
			for path := range pending {
				w.apply(ctx, path)
			}
			clear(pending)
		}
	}
}

func (w *Watcher) apply(ctx context.Context, path string) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		w.lib.Remove(ctx, path)
		return
	}
	if _, err := w.lib.LoadFile(ctx, path); err != nil {
		w.logger.Warn("plan rejected", zap.String("path", path), zap.Error(err))
	}
}
