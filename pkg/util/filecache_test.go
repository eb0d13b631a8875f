package util

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greetPy = `def greet(name: str) -> str:
    return f"Hello, {name}!"

def farewell(name: str) -> str:
    return f"Goodbye, {name}!"
`

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSourceCache_Slice(t *testing.T) {
	path := writeSource(t, t.TempDir(), "greet.py", greetPy)
	cache := NewSourceCache(0, nil)
	defer cache.Close()

	start := strings.Index(greetPy, "def farewell")
	text, err := cache.Slice(path, start, len(greetPy))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "def farewell(name: str) -> str:"))

	whole, err := cache.Bytes(path)
	require.NoError(t, err)
	assert.Equal(t, greetPy, string(whole))

	stats := cache.Stats()
	assert.Equal(t, 1, stats.FilesCached)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestSourceCache_InvalidRanges(t *testing.T) {
	path := writeSource(t, t.TempDir(), "greet.py", greetPy)
	cache := NewSourceCache(0, nil)
	defer cache.Close()

	_, err := cache.Slice(path, -1, 4)
	assert.Error(t, err)

	_, err = cache.Slice(path, 10, 5)
	assert.Error(t, err)

	_, err = cache.Slice(path, 0, len(greetPy)+1)
	assert.ErrorIs(t, err, ErrStaleSource)

	text, err := cache.Slice(path, 3, 3)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestSourceCache_UnicodeOffsetsAreBytes(t *testing.T) {
	src := "name = \"你好\"\nvalue = 1\n"
	path := writeSource(t, t.TempDir(), "u.py", src)
	cache := NewSourceCache(0, nil)
	defer cache.Close()

	start := strings.Index(src, "value")
	text, err := cache.Slice(path, start, start+len("value = 1"))
	require.NoError(t, err)
	assert.Equal(t, "value = 1", text)
}

func TestSourceCache_RemapsChangedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "mod.py", "x = 1\n")
	cache := NewSourceCache(0, nil)
	defer cache.Close()

	text, err := cache.Slice(path, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, "x = 1", text)

	writeSource(t, dir, "mod.py", "value = 22\n")
	text, err = cache.Slice(path, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "value = 22", text)
	assert.Equal(t, int64(1), cache.Stats().Remaps)
}

func TestSourceCache_Invalidate(t *testing.T) {
	path := writeSource(t, t.TempDir(), "greet.py", greetPy)
	cache := NewSourceCache(0, nil)
	defer cache.Close()

	_, err := cache.Bytes(path)
	require.NoError(t, err)
	cache.Invalidate(path)
	cache.Invalidate(path)
	assert.Equal(t, 0, cache.Stats().FilesCached)
}

func TestSourceCache_MaxFiles(t *testing.T) {
	dir := t.TempDir()
	cache := NewSourceCache(2, nil)
	defer cache.Close()

	for _, name := range []string{"a.py", "b.py", "c.py"} {
		_, err := cache.Bytes(writeSource(t, dir, name, "pass\n"))
		require.NoError(t, err)
		assert.LessOrEqual(t, cache.Stats().FilesCached, 2)
	}
}

func TestSourceCache_EmptyAndMissing(t *testing.T) {
	dir := t.TempDir()
	cache := NewSourceCache(0, nil)
	defer cache.Close()

	empty := writeSource(t, dir, "empty.py", "")
	data, err := cache.Bytes(empty)
	require.NoError(t, err)
	assert.Empty(t, data)

	_, err = cache.Slice(empty, 0, 1)
	assert.ErrorIs(t, err, ErrStaleSource)

	_, err = cache.Bytes(filepath.Join(dir, "missing.py"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSourceCache_ConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeSource(t, dir, "greet.py", greetPy),
		writeSource(t, dir, "calc.ts", "export class Calculator {}\n"),
	}
	cache := NewSourceCache(0, nil)
	defer cache.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Slice(paths[i%2], 0, 6); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	stats := cache.Stats()
	assert.Equal(t, 2, stats.FilesCached)
	assert.Equal(t, int64(100), stats.Hits+stats.Misses)
}

func TestSourceCache_CloseResets(t *testing.T) {
	path := writeSource(t, t.TempDir(), "greet.py", greetPy)
	cache := NewSourceCache(0, nil)

	_, err := cache.Bytes(path)
	require.NoError(t, err)
	require.NoError(t, cache.Close())
	assert.Equal(t, 0, cache.Stats().FilesCached)

	// usable after Close
	_, err = cache.Bytes(path)
	assert.NoError(t, err)
	assert.NoError(t, cache.Close())
}

func TestSourceCache_SliceWhileInvalidating(t *testing.T) {
	content := strings.Repeat("x = 1\n", 1<<20) // 6 MiB
	path := writeSource(t, t.TempDir(), "big.py", content)
	cache := NewSourceCache(0, nil)
	defer cache.Close()

	stop := make(chan struct{})
	var invalidator sync.WaitGroup
	invalidator.Add(1)
	go func() {
		defer invalidator.Done()
		for {
			select {
			case <-stop:
				return
			default:
				cache.Invalidate(path)
			}
		}
	}()

	var readers sync.WaitGroup
	errs := make(chan error, 4)
	for range 4 {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for range 50 {
				text, err := cache.Slice(path, 0, len(content))
				if err != nil {
					errs <- err
					return
				}
				if len(text) != len(content) {
					errs <- assert.AnError
					return
				}
			}
		}()
	}
	readers.Wait()
	close(stop)
	invalidator.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestSourceCache_BytesSurvivesInvalidate(t *testing.T) {
	path := writeSource(t, t.TempDir(), "greet.py", greetPy)
	cache := NewSourceCache(0, nil)
	defer cache.Close()

	data, err := cache.Bytes(path)
	require.NoError(t, err)
	cache.Invalidate(path)
	require.NoError(t, cache.Close())

	assert.Equal(t, greetPy, string(data))
}
