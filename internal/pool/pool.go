// Package pool fans a list of attorney queries out over a bounded set of
// concurrent scraping sessions and collects their results. Failures are
// isolated per session: one attorney crashing, failing, or timing out never
// affects the others.
package pool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Fennzo/CourtScrapper/internal/courts"
)

// SessionRunner is the unit of work the pool schedules. A runner must always
// return a result and never panic across the boundary; the pool still guards
// against panics so a buggy runner cannot take sibling sessions down.
type SessionRunner interface {
	Run(ctx context.Context) courts.WorkerResult
}

// SessionFunc builds the runner for one attorney.
type SessionFunc func(index int, attorney courts.AttorneyQuery) SessionRunner

// Pool schedules attorney sessions with bounded concurrency.
type Pool struct {
	maxWorkers int
	newSession SessionFunc
	logger     *zap.Logger
}

// New builds a Pool. maxWorkers values below one are raised to one.
func New(maxWorkers int, newSession SessionFunc, logger *zap.Logger) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{maxWorkers: maxWorkers, newSession: newSession, logger: logger}
}

// Run processes every attorney and returns one result per attorney, ordered
// by attorney index. The worker count never exceeds the number of attorneys.
// Cancelling the context lets in-flight sessions wind down and return their
// partial results; queued attorneys are drained with an interrupted result.
func (p *Pool) Run(ctx context.Context, attorneys []courts.AttorneyQuery) []courts.WorkerResult {
	if len(attorneys) == 0 {
		return nil
	}

	workers := p.maxWorkers
	if len(attorneys) < workers {
		workers = len(attorneys)
	}
	p.logger.Info("session pool starting",
		zap.Int("attorneys", len(attorneys)),
		zap.Int("workers", workers),
	)

	type job struct {
		index    int
		attorney courts.AttorneyQuery
	}
	jobs := make(chan job)

	var (
		mu      sync.Mutex
		results = make([]courts.WorkerResult, 0, len(attorneys))
		wg      sync.WaitGroup
	)
	collect := func(res courts.WorkerResult) {
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					collect(courts.WorkerResult{
						AttorneyIndex: j.index,
						Attorney:      j.attorney,
						Err:           courts.ErrInterrupted,
					})
					continue
				}
				collect(p.runOne(ctx, worker, j.index, j.attorney))
			}
		}(w)
	}

	for i, attorney := range attorneys {
		jobs <- job{index: i, attorney: attorney}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].AttorneyIndex < results[j].AttorneyIndex
	})
	return results
}

// runOne executes one session with a panic fence. A panicking session is
// reported as a failed result for that attorney only.
func (p *Pool) runOne(ctx context.Context, worker, index int, attorney courts.AttorneyQuery) (res courts.WorkerResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("session panicked",
				zap.Int("worker", worker),
				zap.Int("attorney_index", index),
				zap.Any("panic", r),
			)
			res = courts.WorkerResult{
				AttorneyIndex: index,
				Attorney:      attorney,
				Success:       false,
				Err:           fmt.Errorf("session panic: %v", r),
			}
		}
	}()

	p.logger.Debug("session dispatched",
		zap.Int("worker", worker),
		zap.Int("attorney_index", index),
		zap.String("attorney", attorney.FullName()),
	)
	return p.newSession(index, attorney).Run(ctx)
}
