package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/feedsieve/internal/logging"
)

// ---------------------------------------------------------------------------
// Debouncer
// ---------------------------------------------------------------------------

func TestDebouncer_SingleEvent(t *testing.T) {
	var callCount atomic.Int32
	var lastKey atomic.Value

	d := NewDebouncer(50*time.Millisecond, func(key string) {
		callCount.Add(1)
		lastKey.Store(key)
	})
	defer d.Stop()

	d.Trigger("settings.yaml")

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), callCount.Load())
	assert.Equal(t, "settings.yaml", lastKey.Load())
}

func TestDebouncer_MultipleEventsCoalesced(t *testing.T) {
	var callCount atomic.Int32

	d := NewDebouncer(100*time.Millisecond, func(_ string) {
		callCount.Add(1)
	})
	defer d.Stop()

	// Fire 10 rapid events; they should coalesce into 1.
	for i := 0; i < 10; i++ {
		d.Trigger("page.html")
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int32(1), callCount.Load())
}

func TestDebouncer_KeysIndependent(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}

	d := NewDebouncer(50*time.Millisecond, func(key string) {
		mu.Lock()
		seen[key]++
		mu.Unlock()
	})
	defer d.Stop()

	d.Trigger("page.html")
	d.Trigger("settings.yaml")
	d.Trigger("page.html")

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"page.html": 1, "settings.yaml": 1}, seen)
}

func TestDebouncer_Stop(t *testing.T) {
	var callCount atomic.Int32

	d := NewDebouncer(50*time.Millisecond, func(_ string) {
		callCount.Add(1)
	})

	d.Trigger("a.yaml")
	d.Trigger("b.yaml")
	d.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), callCount.Load())
}

// ---------------------------------------------------------------------------
// isRelevant
// ---------------------------------------------------------------------------

func TestIsRelevant(t *testing.T) {
	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{"yaml write", "settings.yaml", fsnotify.Write, true},
		{"html write", "page.html", fsnotify.Write, true},
		{"create event", "new.yaml", fsnotify.Create, true},
		{"remove event", "old.yaml", fsnotify.Remove, true},
		{"rename event", "renamed.yaml", fsnotify.Rename, true},
		{"hidden file", ".hidden", fsnotify.Write, false},
		{"swap file", "file.swp", fsnotify.Write, false},
		{"backup tilde", "file~", fsnotify.Write, false},
		{"emacs hash", "#file#", fsnotify.Write, false},
		{"zero op", "file.yaml", 0, false},
		{"chmod only", "file.yaml", fsnotify.Chmod, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := fsnotify.Event{Name: tt.path, Op: tt.op}
			assert.Equal(t, tt.want, isRelevant(event))
		})
	}
}

// ---------------------------------------------------------------------------
// addFiles
// ---------------------------------------------------------------------------

func TestAddFiles_WatchesParentDirsOnce(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	files, err := addFiles(watcher, []string{
		filepath.Join(dir, "page.html"),
		filepath.Join(dir, "settings.yaml"),
		filepath.Join(sub, "other.yaml"),
	})
	require.NoError(t, err)

	assert.Len(t, files, 3)
	assert.ElementsMatch(t, []string{dir, sub}, watcher.WatchList())
}

func TestAddFiles_MissingDirectory(t *testing.T) {
	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	_, err = addFiles(watcher, []string{"/nonexistent/dir/12345/settings.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watching directory")
}

// ---------------------------------------------------------------------------
// Run (integration)
// ---------------------------------------------------------------------------

func TestRun_NoFiles(t *testing.T) {
	err := Run(context.Background(), DefaultOptions(), func(string) {})
	assert.Error(t, err)
}

func TestRun_GracefulShutdown(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())

	opts := DefaultOptions()
	opts.Files = []string{filepath.Join(dir, "settings.yaml")}
	opts.Logger = logging.Discard()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, opts, func(string) {})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not shut down in time")
	}
}

func TestRun_ReportsOnlyWatchedFiles(t *testing.T) {
	dir := t.TempDir()
	settingsFile := filepath.Join(dir, "settings.yaml")
	otherFile := filepath.Join(dir, "unrelated.txt")
	require.NoError(t, os.WriteFile(settingsFile, []byte("hideNoText: false\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 8)

	opts := DefaultOptions()
	opts.Files = []string{settingsFile}
	opts.Debounce = 50 * time.Millisecond
	opts.Logger = logging.Discard()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, opts, func(path string) { changed <- path })
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(otherFile, []byte("noise"), 0o644))
	require.NoError(t, os.WriteFile(settingsFile, []byte("hideNoText: true\n"), 0o644))

	select {
	case path := <-changed:
		abs, err := filepath.Abs(settingsFile)
		require.NoError(t, err)
		assert.Equal(t, abs, path)
	case <-time.After(2 * time.Second):
		t.Fatal("change was not reported")
	}

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, changed, "unrelated files are ignored")

	cancel()
	<-done
}
