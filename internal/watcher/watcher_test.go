package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 100 * time.Millisecond

// setupTree creates a small application layout under a temp dir
func setupTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "config", "initializers"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tmp"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Gemfile.lock"), []byte("GEM\n"), 0644))
	return root
}

// startWatcher runs a watcher and returns the channel its batches arrive on
func startWatcher(t *testing.T, cfg Config) (*Watcher, <-chan []string) {
	t.Helper()
	batches := make(chan []string, 10)

	w, err := New(cfg, func(paths []string) { batches <- paths }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})

	return w, batches
}

func defaultConfig(root string) Config {
	return Config{
		Root:     root,
		Paths:    []string{"Gemfile.lock", "config", "lib"},
		Ignore:   []string{"tmp", "log", ".git", "*.swp"},
		Debounce: testDebounce,
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(time.Now().String()), 0644))
}

func waitBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change batch")
		return nil
	}
}

func assertNoBatch(t *testing.T, batches <-chan []string) {
	t.Helper()
	select {
	case b := <-batches:
		t.Fatalf("unexpected batch: %v", b)
	case <-time.After(4 * testDebounce):
	}
}

func TestWatcher_FileChange(t *testing.T) {
	root := setupTree(t)
	_, batches := startWatcher(t, defaultConfig(root))

	target := filepath.Join(root, "config", "routes.rb")
	writeFile(t, target)

	assert.Contains(t, waitBatch(t, batches), target)
}

func TestWatcher_Recursive(t *testing.T) {
	root := setupTree(t)
	_, batches := startWatcher(t, defaultConfig(root))

	target := filepath.Join(root, "config", "initializers", "session.rb")
	writeFile(t, target)

	assert.Contains(t, waitBatch(t, batches), target)
}

func TestWatcher_SingleFile(t *testing.T) {
	root := setupTree(t)
	_, batches := startWatcher(t, defaultConfig(root))

	// siblings of a watched file are not reported
	writeFile(t, filepath.Join(root, "README.md"))
	assertNoBatch(t, batches)

	target := filepath.Join(root, "Gemfile.lock")
	writeFile(t, target)
	assert.Contains(t, waitBatch(t, batches), target)
}

func TestWatcher_Debounce(t *testing.T) {
	root := setupTree(t)
	_, batches := startWatcher(t, defaultConfig(root))

	a := filepath.Join(root, "lib", "a.rb")
	b := filepath.Join(root, "lib", "b.rb")
	c := filepath.Join(root, "config", "c.rb")
	writeFile(t, a)
	writeFile(t, b)
	writeFile(t, c)

	batch := waitBatch(t, batches)
	assert.Subset(t, batch, []string{a, b, c})
	assertNoBatch(t, batches)
}

func TestWatcher_Ignore(t *testing.T) {
	root := setupTree(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib", "tmp"), 0755))
	_, batches := startWatcher(t, defaultConfig(root))

	writeFile(t, filepath.Join(root, "lib", "tmp", "cache.rb"))
	writeFile(t, filepath.Join(root, "lib", ".model.rb.swp"))
	writeFile(t, filepath.Join(root, "tmp", "restart.txt"))
	assertNoBatch(t, batches)
}

func TestWatcher_NewDirectory(t *testing.T) {
	root := setupTree(t)
	w, batches := startWatcher(t, defaultConfig(root))

	dir := filepath.Join(root, "lib", "tasks")
	require.NoError(t, os.Mkdir(dir, 0755))
	assert.Contains(t, waitBatch(t, batches), dir)
	assert.Contains(t, w.WatchedDirs(), dir)

	target := filepath.Join(dir, "deploy.rake")
	writeFile(t, target)
	assert.Contains(t, waitBatch(t, batches), target)
}

func TestWatcher_WatchedDirs(t *testing.T) {
	root := setupTree(t)
	cfg := defaultConfig(root)
	cfg.Paths = append(cfg.Paths, "missing", "tmp")
	cfg.Ignore = []string{"initializers"}

	w, err := New(cfg, nil, nil)
	require.NoError(t, err)
	defer w.Close()

	dirs := w.WatchedDirs()
	assert.Contains(t, dirs, root)
	assert.Contains(t, dirs, filepath.Join(root, "config"))
	assert.Contains(t, dirs, filepath.Join(root, "lib"))
	assert.Contains(t, dirs, filepath.Join(root, "tmp"), "explicitly configured paths are watched")
	assert.NotContains(t, dirs, filepath.Join(root, "config", "initializers"))
	assert.NotContains(t, dirs, filepath.Join(root, "missing"))
}

func TestWatcher_RunAfterClose(t *testing.T) {
	root := setupTree(t)
	w, err := New(defaultConfig(root), nil, nil)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
	assert.ErrorIs(t, w.Run(context.Background()), ErrWatcherClosed)
}

func TestWatcher_Ignored(t *testing.T) {
	w := &Watcher{config: Config{Root: "/app", Ignore: []string{"tmp", "*.log"}}}

	assert.True(t, w.ignored("/app/tmp"))
	assert.True(t, w.ignored("/app/lib/tmp/x.rb"))
	assert.True(t, w.ignored("/app/config/dev.log"))
	assert.False(t, w.ignored("/app/config/routes.rb"))
	assert.False(t, w.ignored("/app/lib/tmpl.rb"))
}
