package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"ms-chainsync/internal/errs"
	"ms-chainsync/internal/logger"
	"ms-chainsync/internal/utils"
)

// Job is one unit of reconciliation work. Payload is the JSON-encoded DTO for
// the job's kind; Attempts counts deliveries that have already failed.
type Job struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	EnqueuedAt  time.Time       `json:"enqueuedAt"`
	LastError   string          `json:"lastError,omitempty"`
}

// Handler processes one job. A nil return acknowledges the job; a transient
// error schedules a retry; a permanent error dead-letters it immediately.
type Handler func(ctx context.Context, job *Job) error

type Options struct {
	Concurrency int
	MaxAttempts int
	BackoffBase time.Duration
}

// Queue dispatches durable jobs to registered handlers with bounded
// concurrency, exponential retry backoff and a dead-letter store for jobs
// that exhaust their attempts.
type Queue struct {
	storage Storage
	logger  *logger.Logger
	opts    Options

	mu       sync.RWMutex
	handlers map[string]Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(storage Storage, log *logger.Logger, opts Options) *Queue {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}
	return &Queue{
		storage:  storage,
		logger:   log,
		opts:     opts,
		handlers: make(map[string]Handler),
	}
}

// Register installs the handler for one job kind. Registering after Start is
// allowed; jobs of unknown kinds are retried, not dropped, so a late handler
// still sees them.
func (q *Queue) Register(kind string, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = handler
}

// Enqueue marshals the payload and pushes a fresh job onto the pending list.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	job := &Job{
		ID:          utils.GenerateUUID(),
		Kind:        kind,
		Payload:     raw,
		MaxAttempts: q.opts.MaxAttempts,
		EnqueuedAt:  time.Now(),
	}
	if err := q.storage.Push(ctx, job); err != nil {
		return err
	}
	q.logger.LogQueue("ENQUEUE", kind, fmt.Sprintf("job %s queued", job.ID))
	return nil
}

// Start launches the worker pool and the delayed-job mover. It returns
// immediately; Stop drains the workers.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)

	for i := 0; i < q.opts.Concurrency; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}

	q.wg.Add(1)
	go q.mover(ctx)

	q.logger.LogQueue("START", "all", fmt.Sprintf("%d workers running", q.opts.Concurrency))
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
	q.logger.LogQueue("STOP", "all", "workers drained")
}

// DeadLetters exposes the dead-letter store for the operator surface.
func (q *Queue) DeadLetters(ctx context.Context, limit int) ([]*Job, error) {
	return q.storage.DeadLetters(ctx, limit)
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := q.storage.Pop(ctx, 2*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Error("QUEUE", fmt.Sprintf("pop failed: %v", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}
		q.process(ctx, job)
	}
}

func (q *Queue) mover(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			moved, err := q.storage.PromoteDue(ctx, now)
			if err != nil && ctx.Err() == nil {
				q.logger.Error("QUEUE", fmt.Sprintf("promoting delayed jobs failed: %v", err))
			}
			if moved > 0 {
				q.logger.LogQueue("PROMOTE", "delayed", fmt.Sprintf("%d jobs due", moved))
			}
		}
	}
}

func (q *Queue) process(ctx context.Context, job *Job) {
	q.mu.RLock()
	handler, ok := q.handlers[job.Kind]
	q.mu.RUnlock()
	if !ok {
		q.retry(ctx, job, fmt.Errorf("no handler registered for kind %q", job.Kind))
		return
	}

	if err := handler(ctx, job); err != nil {
		if errs.IsPermanent(err) {
			q.bury(ctx, job, err)
			return
		}
		q.retry(ctx, job, err)
		return
	}
	q.logger.LogQueue("ACK", job.Kind, fmt.Sprintf("job %s done after %d retries", job.ID, job.Attempts))
}

func (q *Queue) retry(ctx context.Context, job *Job, cause error) {
	job.Attempts++
	job.LastError = cause.Error()
	if job.Attempts >= job.MaxAttempts {
		q.bury(ctx, job, cause)
		return
	}

	delay := q.backoff(job.Attempts)
	q.logger.Warn("QUEUE", fmt.Sprintf("job %s (%s) attempt %d/%d failed: %v, retrying in %s",
		job.ID, job.Kind, job.Attempts, job.MaxAttempts, cause, delay))
	if err := q.storage.PushDelayed(ctx, job, time.Now().Add(delay)); err != nil && ctx.Err() == nil {
		q.logger.Error("QUEUE", fmt.Sprintf("scheduling retry for job %s failed: %v", job.ID, err))
	}
}

func (q *Queue) bury(ctx context.Context, job *Job, cause error) {
	job.LastError = cause.Error()
	q.logger.Error("QUEUE", fmt.Sprintf("job %s (%s) dead-lettered after %d attempts: %v",
		job.ID, job.Kind, job.Attempts, cause))
	if err := q.storage.DeadLetter(ctx, job); err != nil && ctx.Err() == nil {
		q.logger.Error("QUEUE", fmt.Sprintf("dead-lettering job %s failed: %v", job.ID, err))
	}
}

// backoff is base * 2^(attempt-1): 2s, 4s, 8s with the default base.
func (q *Queue) backoff(attempt int) time.Duration {
	return q.opts.BackoffBase * time.Duration(math.Pow(2, float64(attempt-1)))
}
