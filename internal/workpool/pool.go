// Package workpool runs independent jobs with bounded concurrency.
//
// The pool exists for the match phase: hundreds of entries each needing an
// isolated unit of work that may suspend on a remote call. Push hands every
// job its own goroutine immediately and a semaphore admits at most limit of
// them into execution, so the caller never blocks while queueing and the
// remote services never see more than limit concurrent requests from the
// matcher. Jobs communicate results through caller-owned slots (each job
// closes over its own index), never through the pool.
package workpool

import (
	"runtime/debug"
	"sync"

	"log/slog"

	"anisync/internal/logging"
)

// DefaultLimit is the job width used when the configured limit is not
// positive.
const DefaultLimit = 5

// Pool is a fixed-width job runner. The zero value is not usable; call New.
type Pool struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New creates a pool admitting at most limit jobs into execution at once.
func New(limit int, logger *slog.Logger) *Pool {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Pool{
		sem:    make(chan struct{}, limit),
		logger: logging.WithComponent(logger, "workpool"),
	}
}

// Push schedules job to run once a slot frees up and returns immediately.
// A panicking job is recovered and logged; it never takes down the pool or
// the other jobs. Jobs are responsible for converting their own failures
// into result-slot values.
func (p *Pool) Push(job func()) {
	if job == nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("job panicked",
					logging.String(logging.FieldEventType, "workpool_panic"),
					logging.Any("panic", r),
					logging.String("stack", string(debug.Stack())))
			}
		}()
		job()
	}()
}

// Wait blocks until every pushed job has completed, including jobs pushed
// from inside other jobs. There is no cancellation: deadlines belong to the
// remote-call collaborators inside the jobs.
func (p *Pool) Wait() {
	p.wg.Wait()
}
