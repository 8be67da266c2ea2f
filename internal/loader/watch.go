package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses bursts of filesystem events into one reload
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports changes to corpus files under a directory tree
type Watcher struct {
	root     string
	patterns []string
	debounce time.Duration
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
}

// WatchOption configures a Watcher
type WatchOption func(*Watcher)

// WithDebounce sets the quiet period before onChange runs
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithPatterns restricts reloads to files matching the doublestar patterns
func WithPatterns(patterns ...string) WatchOption {
	return func(w *Watcher) {
		if len(patterns) > 0 {
			w.patterns = patterns
		}
	}
}

// WithWatchLogger sets the logger
func WithWatchLogger(l *zap.Logger) WatchOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher watches root and every directory below it. fsnotify is not
// recursive, so directories created later are added as they appear.
func NewWatcher(root string, opts ...WatchOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		patterns: DefaultPatterns,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
		watcher:  fw,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addTree(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// Run calls onChange once per burst of relevant events until ctx is done.
// onChange runs on the Run goroutine, so reloads never overlap.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context)) error {
	defer w.watcher.Close()

	// Stop and Reset never leave a stale tick in timer.C (Go 1.23 timers)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("corpus change detected",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()),
			)
			timer.Reset(w.debounce)

		case <-timer.C:
			onChange(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// Close stops watching without waiting for Run
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// relevant reports whether event touches a corpus file. New directories are
// added to the watch set and count as a change.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return true
		}
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range w.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
