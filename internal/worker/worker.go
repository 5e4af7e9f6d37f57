// Package worker provides a bounded pool that runs submitted tasks,
// used by the verifier to fan per-person checks out without unbounded
// goroutine growth.
package worker

import (
	"context"
	"sync"
)

// Task is one unit of work. The context is the pool's run context;
// tasks should return promptly once it is cancelled.
type Task func(ctx context.Context)

type Pool struct {
	numWorkers int
	tasks      chan Task
	wg         sync.WaitGroup
}

func NewPool(numWorkers int, bufferSize int) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		tasks:      make(chan Task, bufferSize),
	}
}

// Start launches the workers. Cancelling the context does not abandon
// queued tasks: every accepted task still runs, sees the cancelled
// context, and is expected to return promptly. This guarantees a
// submitter waiting on its tasks always unwinds during shutdown.
func (p *Pool) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	// Drain until Stop closes the queue. Exiting early on ctx.Done
	// would strand queued tasks and block their submitters forever.
	for task := range p.tasks {
		task(ctx)
	}
}

// Submit enqueues a task, blocking while the buffer is full.
func (p *Pool) Submit(task Task) {
	p.tasks <- task
}

// Stop closes the queue and waits for the workers to finish the
// remaining tasks. No Submit may follow Stop.
func (p *Pool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}
