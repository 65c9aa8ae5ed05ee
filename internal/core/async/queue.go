package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/joseph-ayodele/quotation-intake/internal/ingest"
)

// Trigger is one request for a pass.
type Trigger struct {
	Reason      string // tick | watch | manual
	SubmittedAt time.Time
}

// PassRunner runs one ingestion pass.
type PassRunner interface {
	RunPass(ctx context.Context) ingest.PassReport
}

// PassQueue runs queued pass triggers on a fixed set of workers, so passes
// can overlap up to the worker count and a slow pass never blocks Enqueue.
type PassQueue struct {
	runner  PassRunner
	logger  *slog.Logger
	workers int
	timeout time.Duration
	onPass  func(ingest.PassReport)

	ch     chan Trigger
	wg     sync.WaitGroup
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

type Option func(*PassQueue)

func WithWorkers(n int) Option {
	return func(q *PassQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *PassQueue) {
		if n > 0 {
			q.ch = make(chan Trigger, n)
		}
	}
}

// WithPassTimeout bounds each pass. Zero, the default, means no bound.
func WithPassTimeout(d time.Duration) Option {
	return func(q *PassQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithReportHook is called with every finished pass report.
func WithReportHook(fn func(ingest.PassReport)) Option {
	return func(q *PassQueue) {
		q.onPass = fn
	}
}

func NewPassQueue(runner PassRunner, logger *slog.Logger, opts ...Option) *PassQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &PassQueue{
		runner:  runner,
		logger:  logger,
		workers: 2,
		ch:      make(chan Trigger, 4),
	}
	for _, o := range opts {
		o(q)
	}
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.start()
	return q
}

func (q *PassQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("scheduler.worker.started", "worker_id", workerID)

				for trig := range q.ch {
					q.run(workerID, trig)
				}

				q.logger.Debug("scheduler.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *PassQueue) run(workerID int, trig Trigger) {
	ctx := q.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	q.logger.Info("scheduler.pass.begin",
		"worker_id", workerID,
		"reason", trig.Reason,
		"queued_ms", time.Since(trig.SubmittedAt).Milliseconds(),
	)
	report := q.runner.RunPass(ctx)
	if q.onPass != nil {
		q.onPass(report)
	}
}

// Enqueue queues a trigger and reports whether it was accepted. A full queue
// drops the trigger: a pass is already waiting and will see the same work.
func (q *PassQueue) Enqueue(reason string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("scheduler.enqueue.closed", "reason", reason)
		return false
	}
	select {
	case q.ch <- Trigger{Reason: reason, SubmittedAt: time.Now()}:
		q.logger.Debug("scheduler.enqueued", "reason", reason)
		return true
	default:
		q.logger.Warn("scheduler.queue_full.dropped", "reason", reason)
		return false
	}
}

// Shutdown stops accepting triggers and waits for queued passes. If ctx ends
// first, running passes are cancelled and Shutdown still waits for them.
func (q *PassQueue) Shutdown(ctx context.Context) {
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
		q.logger.Warn("scheduler.shutdown.interrupted")
		q.cancel()
		<-done
	case <-done:
		q.logger.Info("scheduler.shutdown.drained")
	}
	q.cancel()
}
