package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/symdex/pkg/extractor"
	"github.com/gnana997/symdex/pkg/syntax"
	"github.com/gnana997/symdex/pkg/util"
)

func TestExtractBatch_MalformedFileIsolated(t *testing.T) {
	ex := newTestExtractor(t)
	logger := util.NewLogger(util.DefaultLoggerConfig())

	jobs := []FileJob{
		{FileKey: "app/routes.py", Source: []byte(routesPy)},
		{FileKey: "app/broken.py", Source: []byte("def broken(:\n    pass\n")},
		{FileKey: "app/models.py", Source: []byte(modelsPy)},
		{FilePath: filepath.Join(t.TempDir(), "missing.py")},
	}

	outcomes := ExtractBatch(context.Background(), ex, jobs, 2, logger)
	require.Len(t, outcomes, 4)

	assert.True(t, outcomes[0].OK())
	assert.Equal(t, "app/routes.py", outcomes[0].FileKey)
	assert.NotEmpty(t, outcomes[0].Result.Symbols)

	require.False(t, outcomes[1].OK())
	var pe *syntax.ParseError
	require.True(t, errors.As(outcomes[1].Err, &pe))
	assert.Equal(t, "app/broken.py", pe.File)
	assert.Nil(t, outcomes[1].Result)

	assert.True(t, outcomes[2].OK())
	assert.Equal(t, "app/models.py", outcomes[2].Result.FilePath)

	assert.False(t, outcomes[3].OK())

	idx := newTestIndexer(t)
	failed := IndexOutcomes(idx, outcomes)
	assert.Len(t, failed, 2)
	assert.Equal(t, 2, idx.GetStats().Files)

	_, ok := idx.LookupByPath("app.models.Order.Line")
	assert.True(t, ok)
}

func TestExtractBatch_Empty(t *testing.T) {
	ex := newTestExtractor(t)
	assert.Empty(t, ExtractBatch(context.Background(), ex, nil, 0, nil))
}

func TestExtractBatch_Cancelled(t *testing.T) {
	ex := newTestExtractor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := make([]FileJob, 20)
	for i := range jobs {
		jobs[i] = FileJob{FileKey: "m.py", Source: []byte(modelsPy)}
	}
	outcomes := ExtractBatch(ctx, ex, jobs, 2, nil)
	require.Len(t, outcomes, len(jobs))
	for _, o := range outcomes {
		if !o.OK() {
			assert.ErrorIs(t, o.Err, context.Canceled)
		}
	}
}

func TestWorkerPool_SubmitAfterFinish(t *testing.T) {
	ex := newTestExtractor(t)
	pool := NewWorkerPool(context.Background(), 2, ex, nil)
	pool.Start()
	defer pool.Stop()

	require.NoError(t, pool.Submit(FileJob{FileKey: "a.py", Source: []byte("x = 1\n")}))
	pool.FinishSubmitting()
	assert.ErrorIs(t, pool.Submit(FileJob{FileKey: "b.py"}), ErrPoolStopped)

	var n int
	for o := range pool.Outcomes() {
		assert.True(t, o.OK())
		n++
	}
	assert.Equal(t, 1, n)

	stats := pool.GetStats()
	assert.Equal(t, 2, stats.NumWorkers)
	assert.Equal(t, int64(1), stats.JobsProcessed)
}

func TestWorkerPool_KnownHashSkipsExtraction(t *testing.T) {
	ex := newTestExtractor(t)
	dir := t.TempDir()
	same := filepath.Join(dir, "same.py")
	edited := filepath.Join(dir, "edited.py")
	require.NoError(t, os.WriteFile(same, []byte(modelsPy), 0o644))
	require.NoError(t, os.WriteFile(edited, []byte("def fresh():\n    pass\n"), 0o644))

	hash := extractor.ContentHash([]byte(modelsPy))
	outcomes := ExtractBatch(context.Background(), ex, []FileJob{
		{FilePath: same, FileKey: "same.py", KnownHash: hash},
		{FilePath: edited, FileKey: "edited.py", KnownHash: hash},
	}, 2, nil)
	require.Len(t, outcomes, 2)

	assert.True(t, outcomes[0].Unchanged)
	assert.False(t, outcomes[0].OK())
	assert.NoError(t, outcomes[0].Err)
	assert.Nil(t, outcomes[0].Result)

	assert.False(t, outcomes[1].Unchanged)
	require.True(t, outcomes[1].OK())
	assert.Equal(t, "edited.py", outcomes[1].Result.FilePath)

	idx := newTestIndexer(t)
	assert.Empty(t, IndexOutcomes(idx, outcomes))
	assert.Equal(t, 1, idx.GetStats().Files)
}
