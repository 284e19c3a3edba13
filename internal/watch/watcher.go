// Package watch observes snippet folders and turns filesystem activity
// into debounced refresh callbacks. fsnotify watches are not recursive,
// so every subdirectory is registered individually and new ones join as
// they appear. Version-control internals are excluded from the watch
// scope so a pull cannot feed a change event back into the cycle that
// caused it.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultDebounce is how long a burst of events must be quiet
	// before the change callback fires.
	DefaultDebounce = 500 * time.Millisecond

	// defaultRetryInterval seeds the backoff used to register folders
	// that do not exist yet.
	defaultRetryInterval = time.Second

	gitDirName = ".git"
)

// PathsFunc returns the folders to observe. It is re-read on every
// Refresh so configuration reloads take effect.
type PathsFunc func() []string

// Watcher observes snippet folders for external changes.
type Watcher interface {
	// Start runs the watch loop. Blocks until the context is
	// cancelled or Stop is called.
	Start(ctx context.Context) error

	// Refresh discards the current watches and re-registers the
	// folders reported by the paths function. Non-blocking.
	Refresh()

	// Stop gracefully stops the watcher
	Stop() error
}

// defaultWatcher is the default implementation of Watcher.
type defaultWatcher struct {
	paths         PathsFunc
	onChange      func()
	debounce      time.Duration
	retryInterval time.Duration

	refresh chan struct{}

	// Lifecycle management
	cancelFunc context.CancelFunc
	done       chan struct{}
}

var _ Watcher = (*defaultWatcher)(nil)

// Option allows customizing Watcher behavior
type Option func(*defaultWatcher)

// WithDebounce overrides the quiet window before the change callback
// fires.
func WithDebounce(d time.Duration) Option {
	return func(w *defaultWatcher) {
		w.debounce = d
	}
}

// WithRetryInterval overrides the initial delay between attempts to
// register a folder that does not exist yet.
func WithRetryInterval(d time.Duration) Option {
	return func(w *defaultWatcher) {
		w.retryInterval = d
	}
}

// NewWatcher creates a watcher over the folders reported by paths,
// invoking onChange after each debounced burst of changes. onChange
// must be safe for concurrent use; late folder registration fires it
// from a separate goroutine.
func NewWatcher(paths PathsFunc, onChange func(), opts ...Option) Watcher {
	w := &defaultWatcher{
		paths:         paths,
		onChange:      onChange,
		debounce:      DefaultDebounce,
		retryInterval: defaultRetryInterval,
		refresh:       make(chan struct{}, 1),
		done:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start implements Watcher.
func (w *defaultWatcher) Start(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel
	defer func() {
		close(w.done)
		slog.Info("Snippet watcher shutting down")
	}()

	slog.Info("Starting snippet watcher", "debounce", w.debounce.String())

	// Each round owns one fsnotify watcher; a refresh tears it down and
	// builds a fresh one against the current folder set.
	for {
		again, err := w.session(watchCtx)
		if err != nil {
			return err
		}
		if !again {
			return nil
		}
		slog.Debug("Re-registering snippet folders")
	}
}

// Stop implements Watcher.
func (w *defaultWatcher) Stop() error {
	if w.cancelFunc != nil {
		w.cancelFunc()
		<-w.done
	}
	return nil
}

// Refresh implements Watcher.
func (w *defaultWatcher) Refresh() {
	select {
	case w.refresh <- struct{}{}:
	default:
	}
}

// session watches the current folder set until the context is cancelled
// or a refresh is requested. Returns true when the caller should build a
// new session.
func (w *defaultWatcher) session(ctx context.Context) (bool, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return false, fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	// Registration retries stop with the session.
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, root := range w.paths() {
		if err := addTree(fsw, root); err != nil {
			slog.Debug("Snippets folder not watchable yet, scheduling retries",
				"path", root,
				"error", err)
			go w.registerWhenPresent(sessionCtx, fsw, root)
		}
	}

	var debounce *time.Timer
	var debounceC <-chan time.Time
	defer func() { stopTimer(debounce) }()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()

		case <-w.refresh:
			return true, nil

		case event, ok := <-fsw.Events:
			if !ok {
				return false, fmt.Errorf("watcher event channel closed")
			}
			if !relevant(event) {
				continue
			}

			// New directories join the watch so nested changes are seen.
			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = addTree(fsw, event.Name)
				}
			}

			slog.Debug("Snippet change detected",
				"path", event.Name,
				"op", event.Op.String())

			if debounce == nil {
				debounce = time.NewTimer(w.debounce)
				debounceC = debounce.C
			} else {
				resetTimer(debounce, w.debounce)
			}

		case <-debounceC:
			debounce = nil
			debounceC = nil
			w.onChange()

		case err, ok := <-fsw.Errors:
			if !ok {
				return false, fmt.Errorf("watcher error channel closed")
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

// registerWhenPresent keeps retrying registration of a folder until it
// exists, the session ends, or the watcher is closed. A folder that
// appears late triggers one refresh so its contents are loaded without
// waiting for the next timer cycle.
func (w *defaultWatcher) registerWhenPresent(ctx context.Context, fsw *fsnotify.Watcher, root string) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.retryInterval
	policy.MaxInterval = time.Minute

	operation := func() (any, error) {
		err := addTree(fsw, root)
		if errors.Is(err, fsnotify.ErrClosed) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	notify := func(err error, delay time.Duration) {
		slog.Debug("Snippets folder still not watchable",
			"path", root,
			"retry_in", delay.String(),
			"error", err)
	}

	if _, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify)); err != nil {
		if ctx.Err() == nil {
			slog.Warn("Giving up watching snippets folder",
				"path", root,
				"error", err)
		}
		return
	}

	slog.Info("Snippets folder appeared, now watching", "path", root)
	if ctx.Err() == nil {
		w.onChange()
	}
}

// addTree registers root and every subdirectory below it, skipping
// version-control internals.
func addTree(fsw *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == gitDirName && path != root {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// relevant reports whether an event should count toward a refresh.
// Pure permission changes and anything under a version-control
// directory are ignored.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return !underGitDir(event.Name)
}

// underGitDir reports whether any path segment is a version-control
// directory.
func underGitDir(path string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		if segment == gitDirName {
			return true
		}
	}
	return false
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
