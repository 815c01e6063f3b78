// Package watcher reports batches of file changes under the application
// root.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherClosed is returned when Run is called on a closed watcher
var ErrWatcherClosed = errors.New("watcher closed")

// Config configures a Watcher
type Config struct {
	// Root is the directory Paths are relative to
	Root string

	// Paths are files or directories to watch. Directories are watched
	// recursively. Missing paths are skipped.
	Paths []string

	// Ignore holds names or glob patterns matched against each path
	// component below Root
	Ignore []string

	// Debounce is the quiet period after the last event before a batch is
	// delivered
	Debounce time.Duration
}

// Handler receives the changed paths of one batch, sorted and deduplicated
type Handler func(paths []string)

// Watcher watches files and directories with fsnotify.
//
// Single files are watched through their parent directory so that editors
// replacing a file atomically are still seen.
type Watcher struct {
	mu sync.Mutex

	fsw     *fsnotify.Watcher
	config  Config
	handler Handler
	logger  *slog.Logger

	dirs    map[string]bool // recursively watched roots
	files   map[string]bool // individually watched files
	watched map[string]bool // directories registered with fsnotify
	closed  bool
}

// New creates a Watcher and registers every configured path
func New(config Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root, err := filepath.Abs(config.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}
	config.Root = root

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		fsw:     fsw,
		config:  config,
		handler: handler,
		logger:  logger,
		dirs:    make(map[string]bool),
		files:   make(map[string]bool),
		watched: make(map[string]bool),
	}

	for _, p := range config.Paths {
		if err := w.add(p); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	return w, nil
}

func (w *Watcher) add(path string) error {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.config.Root, path)
	}
	abs = filepath.Clean(abs)

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			w.logger.Debug("watch path does not exist, skipping", "path", abs)
			return nil
		}
		return fmt.Errorf("checking watch path %s: %w", abs, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !info.IsDir() {
		w.files[abs] = true
		return w.watchDir(filepath.Dir(abs))
	}
	w.dirs[abs] = true
	return w.watchTree(abs)
}

// watchTree registers dir and every non-ignored directory below it
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Vanished or unreadable entries are skipped
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.ignored(p) {
			return filepath.SkipDir
		}
		return w.watchDir(p)
	})
}

func (w *Watcher) watchDir(dir string) error {
	if w.watched[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.watched[dir] = true
	return nil
}

// WatchedDirs returns the directories registered with fsnotify
func (w *Watcher) WatchedDirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	dirs := make([]string, 0, len(w.watched))
	for d := range w.watched {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Run delivers debounced batches to the handler until ctx is cancelled or
// the watcher is closed. The handler runs on the Run goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.mu.Unlock()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(event) {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
			} else {
				timer.Reset(w.config.Debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-fire:
			fire = nil
			w.flush(pending)
			pending = make(map[string]struct{})
		}
	}
}

// handleEvent reports whether event belongs in the next batch. Newly
// created directories inside a watched tree are registered.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.files[name] {
		return true
	}
	if !w.inTree(name) || w.ignored(name) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			if err := w.watchTree(name); err != nil {
				w.logger.Warn("watching new directory failed", "path", name, "error", err)
			}
		}
	}

	w.logger.Debug("file event", "path", name, "op", event.Op.String())
	return true
}

func (w *Watcher) flush(pending map[string]struct{}) {
	if len(pending) == 0 {
		return
	}
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if w.handler != nil {
		w.handler(paths)
	}
}

// inTree reports whether path lies in a recursively watched directory
func (w *Watcher) inTree(path string) bool {
	for dir := range w.dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// ignored reports whether any component of path below Root matches an
// ignore pattern
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.config.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = path
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "" || part == "." {
			continue
		}
		for _, pattern := range w.config.Ignore {
			if part == pattern {
				return true
			}
			if ok, _ := filepath.Match(pattern, part); ok {
				return true
			}
		}
	}
	return false
}

// Close stops the watcher. Run returns once its event channel closes.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	return w.fsw.Close()
}
