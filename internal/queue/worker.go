package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler processes one job payload. A nil return acknowledges the job; an
// error requeues it until the retry budget runs out.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Worker pulls jobs from one queue with a fixed pool of goroutines.
type Worker struct {
	queue       *Queue
	handler     Handler
	concurrency int
	maxRetries  int
	popTimeout  time.Duration
	logger      *zap.Logger
}

// WorkerOptions configures a worker pool.
type WorkerOptions struct {
	Concurrency int
	MaxRetries  int
}

// NewWorker constructs a worker for the queue.
func NewWorker(q *Queue, handler Handler, opts WorkerOptions, logger *zap.Logger) *Worker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &Worker{
		queue:       q,
		handler:     handler,
		concurrency: opts.Concurrency,
		maxRetries:  opts.MaxRetries,
		popTimeout:  5 * time.Second,
		logger:      logger,
	}
}

// Run blocks until ctx is cancelled, processing jobs with the configured
// concurrency. Delivery is at-least-once: a handler crash after a side
// effect can replay the job, so handlers guard user-visible effects with
// their own idempotency flags.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		env, err := w.queue.pop(ctx, w.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue pop failed", zap.String("queue", w.queue.Key()), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if env == nil {
			continue
		}
		w.process(ctx, *env)
	}
}

func (w *Worker) process(ctx context.Context, env envelope) {
	err := w.handler(ctx, env.Payload)
	if err == nil {
		return
	}

	env.Attempts++
	if env.Attempts >= w.maxRetries {
		w.logger.Error("job exhausted retries",
			zap.String("queue", w.queue.Key()),
			zap.String("job_id", env.JobID),
			zap.Int("attempts", env.Attempts),
			zap.Error(err))
		return
	}

	w.logger.Warn("job failed, requeueing",
		zap.String("queue", w.queue.Key()),
		zap.String("job_id", env.JobID),
		zap.Int("attempts", env.Attempts),
		zap.Error(err))
	if pushErr := w.queue.push(ctx, env); pushErr != nil {
		w.logger.Error("requeue failed", zap.String("queue", w.queue.Key()), zap.Error(pushErr))
	}
}
