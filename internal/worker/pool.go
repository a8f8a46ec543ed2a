package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/intervexa/interview-api/internal/observability"
)

// ErrQueueFull signals backpressure: the bounded queue rejected the task.
var ErrQueueFull = errors.New("worker queue is full")

// ErrPoolClosed is returned when submitting after shutdown began.
var ErrPoolClosed = errors.New("worker pool is shut down")

// Task is one unit of background work. The context is the pool's lifetime
// context, not the submitting request's: evaluations outlive the request
// that triggered them.
type Task func(ctx context.Context)

// Pool is the explicit fire-and-forget mechanism: a fixed set of workers
// draining a bounded queue, with depth and in-flight counts exported as
// gauges. A process restart loses queued tasks; that gap is deliberate and
// observable through answers stuck in pending.
type Pool struct {
	tasks   chan Task
	workers int
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewPool constructs a pool with the given worker count and queue capacity.
func NewPool(workers, queueSize int, logger zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		tasks:   make(chan Task, queueSize),
		workers: workers,
		logger:  logger.With().Str("component", "worker_pool").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}

	p.logger.Info().Int("workers", p.workers).Int("queue_capacity", cap(p.tasks)).Msg("worker pool started")
}

// Submit enqueues a task without blocking. A full queue surfaces as
// ErrQueueFull so callers can make backpressure visible.
func (p *Pool) Submit(task Task) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		observability.EvaluationQueueDepth().Set(float64(len(p.tasks)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Depth returns the number of queued tasks.
func (p *Pool) Depth() int {
	return len(p.tasks)
}

// Shutdown stops accepting tasks, lets workers finish what they hold, and
// waits until they exit or the context expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if p.closed.Swap(true) {
		return nil
	}

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info().Int("dropped", len(p.tasks)).Msg("worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.tasks:
			observability.EvaluationQueueDepth().Set(float64(len(p.tasks)))
			observability.EvaluationsInFlight().Inc()
			p.execute(task)
			observability.EvaluationsInFlight().Dec()
		}
	}
}

func (p *Pool) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("background task panicked")
		}
	}()

	task(p.ctx)
}
