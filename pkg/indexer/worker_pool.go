package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gnana997/symdex/pkg/extractor"
	"github.com/gnana997/symdex/pkg/util"
)

// ErrPoolStopped is returned by Submit once the pool no longer accepts jobs.
var ErrPoolStopped = errors.New("worker pool is stopped")

// FileJob is one file to extract.
type FileJob struct {
	// FilePath is where the source is read from.
	FilePath string

	// FileKey names the file in the index and derives its module name.
	// Defaults to FilePath.
	FileKey string

	// Source, when non-nil, is extracted instead of reading FilePath.
	Source []byte

	// KnownHash is the content hash of the indexed pass, if any. A file
	// that still hashes to it is reported Unchanged without extraction.
	KnownHash string

	JobID int
}

func (j FileJob) key() string {
	if j.FileKey != "" {
		return j.FileKey
	}
	return j.FilePath
}

// FileOutcome is the result of one job: symbols, an error, or Unchanged.
type FileOutcome struct {
	FileKey   string
	JobID     int
	Result    *extractor.FileResult
	Err       error
	Unchanged bool
	Duration  time.Duration
}

// OK reports whether the file was extracted.
func (o FileOutcome) OK() bool {
	return o.Err == nil && !o.Unchanged
}

// WorkerPool runs extraction jobs on a fixed set of goroutines.
//
// **Architecture:**
//   - Buffered job channel, one outcome channel
//   - A failed file produces an outcome with Err set; it never stops the pool
//   - Graceful shutdown support
//
// **Usage:**
//
//	pool := NewWorkerPool(ctx, numWorkers, ex, logger)
//	pool.Start()
//	defer pool.Stop()
//
//	go func() {
//	    for _, f := range files {
//	        pool.Submit(FileJob{FilePath: f})
//	    }
//	    pool.FinishSubmitting()
//	}()
//
//	for outcome := range pool.Outcomes() { ... }
type WorkerPool struct {
	numWorkers int
	jobs       chan FileJob
	outcomes   chan FileOutcome
	wg         sync.WaitGroup
	extractor  *extractor.Extractor
	logger     *slog.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	started    atomic.Bool
	stopped    atomic.Bool
	jobsClosed atomic.Bool
	closeOnce  sync.Once

	jobsSubmitted atomic.Int64
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
}

// NewWorkerPool creates a new worker pool bound to ctx.
//
// numWorkers of 0 uses util.GetOptimalPoolSize(), which is also the
// default parser pool size, so workers never queue on parsers.
func NewWorkerPool(ctx context.Context, numWorkers int, ex *extractor.Extractor, logger *slog.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = util.GetOptimalPoolSize()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers: numWorkers,
		jobs:       make(chan FileJob, numWorkers*2),
		outcomes:   make(chan FileOutcome, numWorkers),
		extractor:  ex,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start spawns all worker goroutines. The outcome channel is closed once
// every worker has exited.
func (wp *WorkerPool) Start() {
	if !wp.started.CompareAndSwap(false, true) {
		wp.logger.Warn("WorkerPool already started")
		return
	}

	wp.logger.Debug("Starting worker pool", "workers", wp.numWorkers)

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	go func() {
		wp.wg.Wait()
		wp.closeOnce.Do(func() { close(wp.outcomes) })
	}()
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug("Worker cancelled", "worker_id", id)
			return

		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			outcome := wp.processJob(id, job)
			select {
			case wp.outcomes <- outcome:
			case <-wp.ctx.Done():
				return
			}
		}
	}
}

func (wp *WorkerPool) processJob(workerID int, job FileJob) FileOutcome {
	start := time.Now()
	outcome := FileOutcome{FileKey: job.key(), JobID: job.JobID}

	content := job.Source
	if content == nil {
		var err error
		content, err = os.ReadFile(job.FilePath)
		if err != nil {
			wp.jobsFailed.Add(1)
			outcome.Err = fmt.Errorf("failed to read file: %w", err)
			outcome.Duration = time.Since(start)
			return outcome
		}
	}

	if job.KnownHash != "" && extractor.ContentHash(content) == job.KnownHash {
		outcome.Unchanged = true
		outcome.Duration = time.Since(start)
		return outcome
	}

	result, err := wp.extractor.ExtractFile(wp.ctx, outcome.FileKey, content)
	outcome.Duration = time.Since(start)
	if err != nil {
		wp.logger.Debug("Extraction error", "worker_id", workerID, "file", outcome.FileKey, "error", err)
		wp.jobsFailed.Add(1)
		outcome.Err = err
		return outcome
	}

	wp.jobsProcessed.Add(1)
	outcome.Result = result
	return outcome
}

// Submit enqueues a job for processing.
//
// **Thread Safety:** Safe for concurrent calls.
//
// **Blocking:** Blocks while the job channel is full; returns the context
// error if the pool is cancelled meanwhile.
func (wp *WorkerPool) Submit(job FileJob) error {
	if wp.stopped.Load() || wp.jobsClosed.Load() {
		return ErrPoolStopped
	}

	wp.jobsSubmitted.Add(1)

	select {
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	case wp.jobs <- job:
		return nil
	}
}

// Outcomes returns the outcome channel. It is closed after the last worker
// exits.
func (wp *WorkerPool) Outcomes() <-chan FileOutcome {
	return wp.outcomes
}

// FinishSubmitting closes the job channel; workers exit once it drains.
//
// **Thread Safety:** Safe to call multiple times (idempotent).
func (wp *WorkerPool) FinishSubmitting() {
	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
		wp.logger.Debug("Jobs channel closed", "total_submitted", wp.jobsSubmitted.Load())
	}
}

// Wait blocks until all workers have finished.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Stop cancels outstanding work and waits for the workers to exit.
//
// **Thread Safety:** Safe to call multiple times (idempotent).
func (wp *WorkerPool) Stop() {
	if !wp.stopped.CompareAndSwap(false, true) {
		return
	}

	wp.FinishSubmitting()
	wp.cancel()
	wp.wg.Wait()

	wp.logger.Debug("Worker pool stopped",
		"jobs_submitted", wp.jobsSubmitted.Load(),
		"jobs_processed", wp.jobsProcessed.Load(),
		"jobs_failed", wp.jobsFailed.Load())
}

// GetStats returns current worker pool statistics.
func (wp *WorkerPool) GetStats() WorkerPoolStats {
	return WorkerPoolStats{
		NumWorkers:     wp.numWorkers,
		JobsSubmitted:  wp.jobsSubmitted.Load(),
		JobsProcessed:  wp.jobsProcessed.Load(),
		JobsFailed:     wp.jobsFailed.Load(),
		QueueLength:    len(wp.jobs),
		OutcomesQueued: len(wp.outcomes),
	}
}

// WorkerPoolStats contains statistics about the worker pool.
type WorkerPoolStats struct {
	NumWorkers     int
	JobsSubmitted  int64
	JobsProcessed  int64
	JobsFailed     int64
	QueueLength    int // Current jobs in queue
	OutcomesQueued int // Outcomes waiting to be consumed
}
