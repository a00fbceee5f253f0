package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeFunc is called with the absolute path of a watched file after its
// changes have settled. It runs on a timer goroutine.
type ChangeFunc func(path string)

// Options configures the watch behaviour.
type Options struct {
	// Files are the files to watch. They need not exist yet.
	Files []string

	// Debounce is the quiet period per file before the callback fires.
	Debounce time.Duration

	// Logger is used for structured logging.
	Logger *slog.Logger
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		Debounce: 200 * time.Millisecond,
		Logger:   slog.Default(),
	}
}

// Run watches opts.Files and blocks until the context is cancelled or a
// SIGINT/SIGTERM signal is received.
func Run(ctx context.Context, opts Options, onChange ChangeFunc) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if len(opts.Files) == 0 {
		return errors.New("no files to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	files, err := addFiles(watcher, opts.Files)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	debouncer := NewDebouncer(opts.Debounce, func(path string) {
		opts.Logger.Debug("file changed", slog.String("path", path))
		onChange(path)
	})
	debouncer.logger = opts.Logger
	defer debouncer.Stop()

	for {
		select {
		case <-sigCtx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !isRelevant(event) {
				continue
			}

			path, watched := files[filepath.Clean(event.Name)]
			if !watched {
				continue
			}

			debouncer.Trigger(path)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// addFiles watches the parent directory of every file and returns the set of
// absolute file paths to report.
func addFiles(watcher *fsnotify.Watcher, paths []string) (map[string]string, error) {
	files := make(map[string]string, len(paths))
	dirs := make(map[string]struct{})

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving file %q: %w", p, err)
		}

		files[abs] = abs

		dir := filepath.Dir(abs)
		if _, done := dirs[dir]; done {
			continue
		}

		if err := watcher.Add(dir); err != nil {
			return nil, fmt.Errorf("watching directory %q: %w", dir, err)
		}

		dirs[dir] = struct{}{}
	}

	return files, nil
}

// isRelevant filters out events that cannot change file contents and events
// on editor scratch files.
func isRelevant(event fsnotify.Event) bool {
	if event.Op == 0 {
		return false
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)

	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return false
	}

	return true
}
