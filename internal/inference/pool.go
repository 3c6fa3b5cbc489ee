package inference

import (
	"context"
	"sync"

	"github.com/llmshield/gateway/internal/gwerrors"
)

// Pool is a fixed-size worker pool for CPU-bound inference work, so a
// Session's Classify/ClassifyTokens calls never run directly on the
// caller's goroutine (spec.md §5: "CPU-heavy inference runs on a blocking
// thread pool disjoint from the async runtime"). Grounded on the teacher's
// anonymizer.ollamaSem buffered-channel semaphore, generalized here into a
// dedicated set of long-lived worker goroutines rather than a bare
// semaphore, since inference work needs both bounded concurrency and a
// drainable shutdown.
type Pool struct {
	jobs chan func()
	wg   sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPool starts size worker goroutines. size < 1 is treated as 1.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		jobs:   make(chan func()),
		closed: make(chan struct{}),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			job()
		case <-p.closed:
			return
		}
	}
}

// Run submits fn to the pool and blocks until it completes, ctx is done, or
// the pool is closed — whichever comes first.
func (p *Pool) Run(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case p.jobs <- wrapped:
	case <-ctx.Done():
		return gwerrors.TimedOut("inference.Pool.Run")
	case <-p.closed:
		return gwerrors.Internal("inference.Pool.Run", errPoolClosed)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return gwerrors.TimedOut("inference.Pool.Run")
	}
}

// Close stops accepting new work and waits for in-flight jobs to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	p.wg.Wait()
}

var errPoolClosed = poolClosedError{}

type poolClosedError struct{}

func (poolClosedError) Error() string { return "inference: pool closed" }
