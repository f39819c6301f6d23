package async

import (
	"context"
	"sync"
	"time"

	"log/slog"
)

// ExecutionQueue is a fixed worker pool over a buffered channel. Enqueue
// blocks when the buffer is full; Shutdown drains in-flight jobs.
type ExecutionQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ExecutionQueue)

func WithWorkers(n int) Option {
	return func(q *ExecutionQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ExecutionQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ExecutionQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewExecutionQueue(proc Processor, logger *slog.Logger, opts ...Option) *ExecutionQueue {
	q := &ExecutionQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ExecutionQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.proc.ProcessExecution(ctx, job.ExecutionID)
					cancel()

					if err != nil {
						q.logger.Error("processing failed", "worker_id", workerID, "execution_id", job.ExecutionID, "error", err)
					} else {
						q.logger.Info("processed execution", "worker_id", workerID, "execution_id", job.ExecutionID)
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ExecutionQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "execution_id", job.ExecutionID)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued execution for processing", "execution_id", job.ExecutionID)
	default:
		q.logger.Warn("queue full, applying backpressure", "execution_id", job.ExecutionID)
		q.ch <- job
	}
	return nil
}

// Dispatch satisfies the dispatcher contract of the executions service.
func (q *ExecutionQueue) Dispatch(ctx context.Context, executionID string) error {
	return q.Enqueue(ctx, Job{ExecutionID: executionID, SubmittedAt: time.Now().UTC()})
}

func (q *ExecutionQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
