package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWatcher_ReindexAndRemove(t *testing.T) {
	root := t.TempDir()
	ex := newTestExtractor(t)
	idx := newTestIndexer(t)

	var replaced, removed atomic.Int32
	opts := DefaultWatchOptions()
	opts.DebounceMs = 20
	opts.OnReplace = func(*FileSymbols) { replaced.Add(1) }
	opts.OnRemove = func(string) { removed.Add(1) }

	w, err := NewFileWatcher(idx, ex, opts, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, root))
	defer w.Stop()
	assert.True(t, w.GetStats().IsRunning)

	path := filepath.Join(root, "svc.py")
	require.NoError(t, os.WriteFile(path, []byte("class Service:\n    pass\n"), 0o644))

	require.Eventually(t, func() bool {
		_, ok := idx.LookupByPath("svc.Service")
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("class Service:\n    def run(self):\n        pass\n"), 0o644))
	require.Eventually(t, func() bool {
		_, ok := idx.LookupByPath("svc.Service.run")
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	// a syntax error keeps the last good pass
	require.NoError(t, os.WriteFile(path, []byte("class Service(:\n"), 0o644))
	require.Eventually(t, func() bool {
		return idx.IsDirty("svc.py")
	}, 5*time.Second, 20*time.Millisecond)
	_, ok := idx.LookupByPath("svc.Service.run")
	assert.True(t, ok)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		_, ok := idx.GetFileSymbols("svc.py")
		return !ok
	}, 5*time.Second, 20*time.Millisecond)

	assert.GreaterOrEqual(t, replaced.Load(), int32(2))
	assert.Equal(t, int32(1), removed.Load())
}

func TestFileWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewFileWatcher(newTestIndexer(t), newTestExtractor(t), WatchOptions{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), t.TempDir()))

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
	assert.False(t, w.GetStats().IsRunning)
	assert.Error(t, w.Start(context.Background(), t.TempDir()))
}

func TestFileWatcher_DirectoryRename(t *testing.T) {
	root := t.TempDir()
	ex := newTestExtractor(t)
	idx := newTestIndexer(t)

	source := "def f():\n    pass\n"
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "x.py"), []byte(source), 0o644))
	idx.ReplaceFile(extract(t, ex, "a/x.py", source))

	var mu sync.Mutex
	var removedKeys []string
	opts := DefaultWatchOptions()
	opts.DebounceMs = 20
	opts.OnRemove = func(key string) {
		mu.Lock()
		removedKeys = append(removedKeys, key)
		mu.Unlock()
	}

	w, err := NewFileWatcher(idx, ex, opts, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, root))
	defer w.Stop()

	require.NoError(t, os.Rename(filepath.Join(root, "a"), filepath.Join(root, "b")))

	require.Eventually(t, func() bool {
		_, oldIndexed := idx.LookupByPath("a.x.f")
		_, newIndexed := idx.LookupByPath("b.x.f")
		return !oldIndexed && newIndexed
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"b/x.py"}, idx.FilesUnder(""))

	mu.Lock()
	assert.Contains(t, removedKeys, "a/x.py")
	mu.Unlock()

	require.NoError(t, os.RemoveAll(filepath.Join(root, "b")))
	require.Eventually(t, func() bool {
		return len(idx.FilesUnder("")) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFileWatcher_NewDirectoryIsIndexed(t *testing.T) {
	root := t.TempDir()
	idx := newTestIndexer(t)

	opts := DefaultWatchOptions()
	opts.DebounceMs = 20
	w, err := NewFileWatcher(idx, newTestExtractor(t), opts, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx, root))
	defer w.Stop()

	// built outside the root, then moved in
	outside := filepath.Join(t.TempDir(), "pkg")
	require.NoError(t, os.MkdirAll(filepath.Join(outside, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "sub", "m.py"), []byte("class M:\n    pass\n"), 0o644))
	require.NoError(t, os.Rename(outside, filepath.Join(root, "pkg")))

	require.Eventually(t, func() bool {
		_, ok := idx.LookupByPath("pkg.sub.m.M")
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestFileWatcher_RearmDuringReindexKeepsTimer(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "svc.py")
	require.NoError(t, os.WriteFile(path, []byte("class Service:\n    pass\n"), 0o644))

	var w *FileWatcher
	rearmed := make(chan struct{})
	var once sync.Once
	opts := DefaultWatchOptions()
	opts.DebounceMs = 20
	opts.OnReplace = func(*FileSymbols) {
		once.Do(func() {
			// a new event arrives while the first re-extraction runs
			w.options.DebounceMs = 10_000
			w.debounceReindex(path)
			close(rearmed)
		})
	}

	var err error
	w, err = NewFileWatcher(newTestIndexer(t), newTestExtractor(t), opts, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), root))
	defer w.Stop()

	w.debounceReindex(path)
	select {
	case <-rearmed:
	case <-time.After(5 * time.Second):
		t.Fatal("re-extraction never ran")
	}

	assert.Never(t, func() bool {
		return w.GetStats().PendingReindexes == 0
	}, 200*time.Millisecond, 10*time.Millisecond)
}
