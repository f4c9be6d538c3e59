package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/flowerwork/iceberg/internal/pipeline"
)

// ArtifactQueue runs pipeline invocations on a fixed pool of workers. Each
// artifact is processed independently; ordering across artifacts is not
// guaranteed.
type ArtifactQueue struct {
	proc    *pipeline.Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ArtifactQueue)

func WithWorkers(n int) Option {
	return func(q *ArtifactQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ArtifactQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ArtifactQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewArtifactQueue(proc *pipeline.Processor, logger *slog.Logger, opts ...Option) *ArtifactQueue {
	q := &ArtifactQueue{
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

func (q *ArtifactQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.proc.ProcessArtifact(ctx, job.Bucket, job.Key)
					cancel()

					if err != nil {
						q.logger.Error("processing failed", "worker_id", workerID, "bucket", job.Bucket, "key", job.Key, "error", err)
					} else {
						q.logger.Info("processed artifact successfully", "worker_id", workerID, "bucket", job.Bucket, "key", job.Key)
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ArtifactQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "bucket", job.Bucket, "key", job.Key)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued artifact for processing", "bucket", job.Bucket, "key", job.Key)
	default:
		q.logger.Warn("queue full, applying backpressure", "bucket", job.Bucket, "key", job.Key)
		q.ch <- job
	}
	return nil
}

func (q *ArtifactQueue) Shutdown(ctx context.Context) {
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
