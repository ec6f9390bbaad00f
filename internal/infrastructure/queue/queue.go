package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrQueueFull   = errors.New("task queue is full")
	ErrQueueClosed = errors.New("task queue is closed")
)

// Options configures a Queue.
type Options struct {
	Name        string
	Size        int
	Workers     int
	MaxAttempts int
	// Backoff returns the delay before retry number attempt (1-based).
	Backoff func(attempt int) time.Duration
}

// ExponentialBackoff doubles base per attempt up to max.
func ExponentialBackoff(base, max time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		return d
	}
}

type job struct {
	id      string
	task    domain.Task
	attempt int
}

// Queue is a bounded in-process worker pool with retry.
type Queue struct {
	opts   Options
	jobs   chan *job
	logger zerolog.Logger

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// New creates a queue. Call Start to launch its workers.
func New(opts Options, logger zerolog.Logger) *Queue {
	if opts.Size < 1 {
		opts.Size = 64
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Backoff == nil {
		opts.Backoff = ExponentialBackoff(time.Second, time.Minute)
	}
	return &Queue{
		opts:   opts,
		jobs:   make(chan *job, opts.Size),
		logger: logger.With().Str("queue", opts.Name).Logger(),
	}
}

// Start launches the workers. They stop when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.opts.Workers; i++ {
		go q.work(ctx)
	}
	q.logger.Info().Int("workers", q.opts.Workers).Int("size", q.opts.Size).Msg("Task queue started")
}

// Submit enqueues task without blocking and returns its id.
func (q *Queue) Submit(task domain.Task) (string, error) {
	if task.Run == nil {
		return "", fmt.Errorf("task %q has no run function", task.Name)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", ErrQueueClosed
	}

	j := &job{id: uuid.NewString(), task: task, attempt: 1}
	q.pending.Add(1)
	select {
	case q.jobs <- j:
		metrics.QueueDepth.WithLabelValues(q.opts.Name).Set(float64(len(q.jobs)))
		q.logger.Debug().Str("taskId", j.id).Str("task", task.Name).Str("shop", task.Shop).Msg("Task submitted")
		return j.id, nil
	default:
		q.pending.Done()
		metrics.TasksTotal.WithLabelValues(q.opts.Name, task.Name, "rejected").Inc()
		return "", ErrQueueFull
	}
}

// Close stops accepting tasks and waits for in-flight ones, including
// scheduled retries, until ctx expires.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every submitted task has finished or been dropped.
func (q *Queue) Wait() {
	q.pending.Wait()
}

func (q *Queue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.drain()
			return
		case j := <-q.jobs:
			metrics.QueueDepth.WithLabelValues(q.opts.Name).Set(float64(len(q.jobs)))
			q.run(ctx, j)
		}
	}
}

// drain discards buffered jobs once workers are stopping.
func (q *Queue) drain() {
	for {
		select {
		case j := <-q.jobs:
			metrics.TasksTotal.WithLabelValues(q.opts.Name, j.task.Name, "dropped").Inc()
			q.logger.Warn().Str("taskId", j.id).Str("task", j.task.Name).Str("shop", j.task.Shop).Msg("Dropping task on shutdown")
			q.pending.Done()
		default:
			return
		}
	}
}

func (q *Queue) run(ctx context.Context, j *job) {
	log := q.logger.With().
		Str("taskId", j.id).
		Str("task", j.task.Name).
		Str("shop", j.task.Shop).
		Int("attempt", j.attempt).
		Logger()

	err := q.safeRun(ctx, j)
	if err == nil {
		metrics.TasksTotal.WithLabelValues(q.opts.Name, j.task.Name, "succeeded").Inc()
		log.Debug().Msg("Task completed")
		q.pending.Done()
		return
	}

	maxAttempts := j.task.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = q.opts.MaxAttempts
	}
	if domain.IsPermanent(err) || j.attempt >= maxAttempts || ctx.Err() != nil {
		metrics.TasksTotal.WithLabelValues(q.opts.Name, j.task.Name, "failed").Inc()
		log.Error().Err(err).Bool("permanent", domain.IsPermanent(err)).Msg("Task failed")
		q.pending.Done()
		return
	}

	delay := q.opts.Backoff(j.attempt)
	metrics.TasksTotal.WithLabelValues(q.opts.Name, j.task.Name, "retried").Inc()
	log.Warn().Err(err).Dur("retryIn", delay).Msg("Task failed, scheduling retry")

	next := &job{id: j.id, task: j.task, attempt: j.attempt + 1}
	time.AfterFunc(delay, func() { q.requeue(ctx, next) })
}

// requeue never blocks; a retry that finds the queue full is dropped.
func (q *Queue) requeue(ctx context.Context, j *job) {
	if ctx.Err() != nil {
		q.pending.Done()
		return
	}
	select {
	case q.jobs <- j:
	default:
		metrics.TasksTotal.WithLabelValues(q.opts.Name, j.task.Name, "dropped").Inc()
		q.logger.Error().Str("taskId", j.id).Str("task", j.task.Name).Msg("Queue full, dropping retry")
		q.pending.Done()
	}
}

func (q *Queue) safeRun(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return j.task.Run(ctx)
}
