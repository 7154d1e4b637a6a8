package compress

import (
	"context"
	"errors"
	"sync"
)

// DefaultParallelism caps concurrent compression calls.
const DefaultParallelism = 3

// ErrAborted indicates the cancellation signal fired between batches.
var ErrAborted = errors.New("compress: aborted")

// Task is one block to compress, addressed by content hash.
type Task struct {
	Hash string
	Raw  string
}

// Pool runs compression calls with bounded parallelism. One pool is shared
// by the background pipeline and the swap controller so the configured cap
// holds across both.
type Pool struct {
	adapter  *Adapter
	parallel int
	sem      chan struct{}
}

// NewPool creates a pool with the given concurrency cap.
func NewPool(adapter *Adapter, parallel int) *Pool {
	if parallel <= 0 {
		parallel = DefaultParallelism
	}
	return &Pool{
		adapter:  adapter,
		parallel: parallel,
		sem:      make(chan struct{}, parallel),
	}
}

// Compress runs one call under the pool's concurrency cap. Used by the
// background pipeline where each block is an independent fire-and-forget
// task.
func (p *Pool) Compress(ctx context.Context, raw string) (Result, error) {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return Result{}, ErrAborted
	}
	return p.adapter.Compress(ctx, raw)
}

// CompressAll compresses tasks in batches of the configured parallelism,
// checking the cancellation signal between batches. On cancellation or on
// any hard failure the whole operation aborts: partial results are
// discarded and an error is returned, so the caller commits nothing.
func (p *Pool) CompressAll(ctx context.Context, tasks []Task) (map[string]Result, error) {
	results := make(map[string]Result, len(tasks))

	for start := 0; start < len(tasks); start += p.parallel {
		if err := ctx.Err(); err != nil {
			return nil, ErrAborted
		}

		end := start + p.parallel
		if end > len(tasks) {
			end = len(tasks)
		}
		batch := tasks[start:end]

		type outcome struct {
			hash string
			res  Result
			err  error
		}
		outcomes := make([]outcome, len(batch))

		var wg sync.WaitGroup
		for i, task := range batch {
			wg.Add(1)
			go func(i int, task Task) {
				defer wg.Done()
				// Through Compress, not the adapter, so the shared
				// semaphore also counts in-flight background calls.
				res, err := p.Compress(ctx, task.Raw)
				outcomes[i] = outcome{hash: task.Hash, res: res, err: err}
			}(i, task)
		}
		wg.Wait()

		for _, o := range outcomes {
			if o.err != nil {
				return nil, o.err
			}
			results[o.hash] = o.res
		}
	}
	return results, nil
}
