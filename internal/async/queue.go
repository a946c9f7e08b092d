// Package async runs queued file jobs on a fixed pool of workers.
package async

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
)

// Job is one file waiting to be recognized.
type Job struct {
	Path        string
	SubmittedAt time.Time
}

// Handler processes a single job. The context carries the per-job timeout.
type Handler func(ctx context.Context, job Job) error

type Queue struct {
	handle  Handler
	logger  *zap.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(handle Handler, logger *zap.Logger, opts ...Option) *Queue {
	q := &Queue{
		handle:  handle,
		logger:  common.LoggerOrNop(logger),
		workers: 2,
		timeout: time.Minute,
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		q.wg.Add(q.workers)
		for id := 1; id <= q.workers; id++ {
			go q.work(id)
		}
	})
}

func (q *Queue) work(id int) {
	defer q.wg.Done()
	log := q.logger.With(zap.Int("worker_id", id))
	for job := range q.ch {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := q.handle(ctx, job)
		cancel()

		fields := []zap.Field{
			zap.String("path", job.Path),
			zap.Duration("queued", start.Sub(job.SubmittedAt)),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if err != nil {
			log.Warn("async.job.fail", append(fields, zap.Error(err))...)
			continue
		}
		log.Debug("async.job.ok", fields...)
	}
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return common.NewAppError(common.CodeCancelled, "queue is shutting down", nil)
	}
	select {
	case q.ch <- job:
		return nil
	default:
	}
	q.logger.Warn("async.queue.full", zap.String("path", job.Path))
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return common.NewAppError(common.CodeCancelled, "enqueue cancelled", ctx.Err())
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish. It
// returns ctx's error when the wait is cut short.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		q.logger.Warn("async.queue.shutdown_interrupted", zap.Int("pending", len(q.ch)))
		return ctx.Err()
	}
}
