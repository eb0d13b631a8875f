package indexer

import (
	"context"
	"log/slog"

	"github.com/gnana997/symdex/pkg/extractor"
	"github.com/gnana997/symdex/pkg/util"
)

// ExtractBatch extracts many files in parallel and returns one outcome per
// job, in job order. A file that fails to read or parse yields an outcome
// with Err set; the other files are unaffected.
//
// Jobs left unprocessed because ctx was cancelled get ctx.Err().
func ExtractBatch(ctx context.Context, ex *extractor.Extractor, jobs []FileJob, workers int, logger *slog.Logger) []FileOutcome {
	outcomes := make([]FileOutcome, len(jobs))
	if len(jobs) == 0 {
		return outcomes
	}
	if workers <= 0 || workers > len(jobs) {
		workers = min(len(jobs), util.GetOptimalPoolSize())
	}

	pool := NewWorkerPool(ctx, workers, ex, logger)
	pool.Start()
	defer pool.Stop()

	// Collector runs before submission so a full job channel cannot block
	// the submitter while the outcome channel is also full.
	done := make(chan struct{})
	seen := make([]bool, len(jobs))
	go func() {
		defer close(done)
		for o := range pool.Outcomes() {
			outcomes[o.JobID] = o
			seen[o.JobID] = true
		}
	}()

	for i := range jobs {
		job := jobs[i]
		job.JobID = i
		if err := pool.Submit(job); err != nil {
			break
		}
	}
	pool.FinishSubmitting()
	<-done

	for i, ok := range seen {
		if !ok {
			err := ctx.Err()
			if err == nil {
				err = ErrPoolStopped
			}
			outcomes[i] = FileOutcome{FileKey: jobs[i].key(), JobID: i, Err: err}
		}
	}
	return outcomes
}

// IndexOutcomes swaps every successful outcome into idx and returns the
// failures. Unchanged outcomes leave the index as it is.
func IndexOutcomes(idx *SymbolIndexer, outcomes []FileOutcome) []FileError {
	var failed []FileError
	for _, o := range outcomes {
		if o.Unchanged {
			continue
		}
		if !o.OK() {
			failed = append(failed, FileError{FilePath: o.FileKey, Err: o.Err})
			continue
		}
		idx.ReplaceFile(o.Result)
	}
	return failed
}
