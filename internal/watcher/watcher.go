package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"curator/internal/logging"
	"curator/internal/services"
)

// Watcher observes a directory tree and fires a callback after filesystem
// activity settles for the debounce window. Bursts of events (a large copy,
// an unpack) collapse into a single callback.
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *slog.Logger
}

// New validates the root and builds a watcher.
func New(root string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, services.Wrap(services.ErrRootUnreadable, "watcher", "stat root", root, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrRootUnreadable, "watcher", "stat root",
			root+" is not a directory", nil)
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{root: root, debounce: debounce, logger: logger}, nil
}

// Run blocks until ctx is done, invoking onSettle after each quiet period
// that follows one or more filesystem events. Callback errors are logged,
// not fatal; the watch continues.
func (w *Watcher) Run(ctx context.Context, onSettle func(context.Context) error) error {
	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "watcher", "create watcher", "", err)
	}
	defer notify.Close()

	if err := w.addTree(notify, w.root); err != nil {
		return err
	}
	w.logger.Info("watching",
		logging.String(logging.FieldComponent, "watcher"),
		logging.String(logging.FieldPath, w.root))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-notify.Events:
			if !ok {
				return nil
			}
			// New directories must be watched before their contents settle.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addTree(notify, event.Name)
				}
			}
			if !pending {
				pending = true
			} else if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)

		case err, ok := <-notify.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error",
				logging.String(logging.FieldComponent, "watcher"),
				logging.Error(err))

		case <-timer.C:
			pending = false
			if err := onSettle(ctx); err != nil {
				w.logger.Warn("settle callback failed",
					logging.String(logging.FieldComponent, "watcher"),
					logging.Error(err))
			}
		}
	}
}

func (w *Watcher) addTree(notify *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return services.Wrap(services.ErrRootUnreadable, "watcher", "walk root", root, err)
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if err := notify.Add(path); err != nil {
			w.logger.Warn("cannot watch directory",
				logging.String(logging.FieldComponent, "watcher"),
				logging.String(logging.FieldPath, path),
				logging.Error(err))
		}
		return nil
	})
}
