package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-reader/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reader/internal/session"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// FileProcessor is the pipeline entry point the queue drives.
type FileProcessor interface {
	ProcessFile(ctx context.Context, sess *session.Session, name, path string) pipeline.Outcome
}

// ProcessorQueue feeds files of one session through the pipeline with a
// single worker, so rows land in the CSV in submission order.
type ProcessorQueue struct {
	proc      FileProcessor
	sess      *session.Session
	logger    *slog.Logger
	timeout   time.Duration
	onOutcome func(pipeline.Outcome)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithOutcomeHandler is called from the worker after every file.
func WithOutcomeHandler(fn func(pipeline.Outcome)) Option {
	return func(q *ProcessorQueue) { q.onOutcome = fn }
}

func NewProcessorQueue(proc FileProcessor, sess *session.Session, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		sess:    sess,
		logger:  logger,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.logger.Info("queue.worker.started", "session_id", q.sess.ID)
			for job := range q.ch {
				q.run(job)
			}
			q.logger.Info("queue.worker.stopped", "session_id", q.sess.ID)
		}()
	})
}

func (q *ProcessorQueue) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	q.sess.Lock()
	out := q.proc.ProcessFile(ctx, q.sess, job.Name, job.Path)
	q.sess.Unlock()

	q.logger.Debug("queue.job.done",
		"file", job.Name,
		"status", out.Status,
		"waited_ms", time.Since(job.SubmittedAt).Milliseconds(),
	)
	if q.onOutcome != nil {
		q.onOutcome(out)
	}
}

// Enqueue blocks while the buffer is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "file", job.Name)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		return nil
	default:
	}
	q.logger.Warn("queue.full", "file", job.Name, "capacity", cap(q.ch))
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to drain or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
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
		q.logger.Warn("queue.shutdown.interrupted", "error", ctx.Err())
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
