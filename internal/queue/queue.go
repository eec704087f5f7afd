// Package queue implements the single-worker transcription queue: FIFO,
// idempotent bounded enqueue, per-job timeout, bounded retries with a fixed
// backoff, and a small pause between jobs so the host process is never
// starved.
//
// The queue holds job identifiers only. Job state lives in the external
// record store, which also makes startup recovery possible after a crash.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tomasrey88/plantavoz/internal/observe"
	"github.com/tomasrey88/plantavoz/internal/store"
)

const (
	defaultMaxDepth   = 50
	defaultMaxRetries = 3
	defaultBackoff    = 5 * time.Second
	defaultJobTimeout = 120 * time.Second
	defaultPause      = 500 * time.Millisecond
)

// ProcessFunc is the registered processing callback, invoked by the worker
// for each dequeued job under the configured timeout.
type ProcessFunc func(ctx context.Context, jobID string) error

// JobStore is the slice of the record store the queue needs to persist job
// state transitions.
type JobStore interface {
	UpdateJobStatus(ctx context.Context, id string, status store.JobStatus, attempts int, lastError string) error
	JobsByStatus(ctx context.Context, statuses ...store.JobStatus) ([]store.TranscriptionJob, error)
}

// Config tunes the queue. Zero values fall back to the documented defaults.
type Config struct {
	// MaxDepth caps the number of waiting jobs. Default 50.
	MaxDepth int

	// MaxRetries is how many times a failed job is retried before it is
	// marked failed permanently. Default 3.
	MaxRetries int

	// Backoff is the fixed delay before a failed job runs again. Default 5s.
	Backoff time.Duration

	// JobTimeout bounds one processing attempt. Default 120s.
	JobTimeout time.Duration

	// Pause is the idle gap between consecutive jobs. Default 500ms.
	Pause time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = defaultMaxDepth
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}
	if c.Pause <= 0 {
		c.Pause = defaultPause
	}
	return c
}

// Status is an observability snapshot of the queue.
type Status struct {
	// QueueLength is the number of jobs waiting, excluding the one in flight.
	QueueLength int

	// Processing reports whether the worker currently holds a job.
	Processing bool

	// PerItemWait estimates how long each waiting position costs, based on
	// recent job durations plus the inter-job pause.
	PerItemWait time.Duration
}

// Queue is the in-memory FIFO plus its single worker. Enqueue and Status are
// safe to call from any goroutine; Run is the worker and must be started
// exactly once.
type Queue struct {
	cfg     Config
	store   JobStore
	process ProcessFunc
	log     *slog.Logger
	metrics *observe.Metrics

	wake chan struct{}

	mu          sync.Mutex
	items       []string
	attempts    map[string]int
	inFlight    string
	avgDuration time.Duration
}

// Option is a functional option for configuring a [Queue].
type Option func(*Queue)

// WithLogger sets the worker's logger.
func WithLogger(log *slog.Logger) Option {
	return func(q *Queue) {
		q.log = log
	}
}

// WithMetrics wires the queue-depth gauge and job-outcome counter.
func WithMetrics(m *observe.Metrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// New returns a queue whose worker will invoke process for every job.
func New(cfg Config, jobs JobStore, process ProcessFunc, opts ...Option) *Queue {
	q := &Queue{
		cfg:      cfg.withDefaults(),
		store:    jobs,
		process:  process,
		log:      slog.Default(),
		wake:     make(chan struct{}, 1),
		attempts: make(map[string]int),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue adds a job id to the queue. It reports false only when the queue
// is full; enqueueing an id that is already waiting or in flight reports
// true without duplicating work.
func (q *Queue) Enqueue(jobID string) bool {
	return q.enqueue(jobID, 0)
}

func (q *Queue) enqueue(jobID string, attempts int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if jobID == q.inFlight {
		return true
	}
	if _, waiting := q.attempts[jobID]; waiting {
		return true
	}
	if len(q.items) >= q.cfg.MaxDepth {
		return false
	}
	q.items = append(q.items, jobID)
	q.attempts[jobID] = attempts
	q.gaugeDepth(1)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// Status returns a point-in-time snapshot for observability.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	wait := q.avgDuration
	if wait == 0 {
		wait = q.cfg.JobTimeout / 4
	}
	return Status{
		QueueLength: len(q.items),
		Processing:  q.inFlight != "",
		PerItemWait: wait + q.cfg.Pause,
	}
}

// Run is the worker loop. It drains jobs one at a time until ctx is
// cancelled and always returns ctx.Err().
func (q *Queue) Run(ctx context.Context) error {
	for {
		jobID, attempts, ok := q.take()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.wake:
				continue
			}
		}

		q.runJob(ctx, jobID, attempts)

		if err := sleep(ctx, q.cfg.Pause); err != nil {
			return err
		}
	}
}

// take pops the queue head, marking it in flight. ok is false when the queue
// is empty.
func (q *Queue) take() (jobID string, attempts int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", 0, false
	}
	jobID = q.items[0]
	q.items = q.items[1:]
	attempts = q.attempts[jobID]
	delete(q.attempts, jobID)
	q.inFlight = jobID
	q.gaugeDepth(-1)
	return jobID, attempts, true
}

// runJob executes one attempt and persists the outcome. A timeout counts as
// any other failure and feeds the retry policy.
func (q *Queue) runJob(ctx context.Context, jobID string, attempts int) {
	q.markStatus(ctx, jobID, store.JobProcessing, attempts, "")

	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, q.cfg.JobTimeout)
	err := q.process(jobCtx, jobID)
	cancel()
	q.observeDuration(time.Since(start))

	if err == nil {
		q.markStatus(ctx, jobID, store.JobCompleted, attempts, "")
		q.recordJob(ctx, "completed")
		q.clearInFlight()
		return
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// Shutdown, not a job failure. Leave the job pending for the next
		// process lifetime's recovery scan.
		q.markStatus(context.WithoutCancel(ctx), jobID, store.JobPending, attempts, "")
		q.clearInFlight()
		return
	}

	if attempts >= q.cfg.MaxRetries {
		q.log.Error("job failed permanently", "job_id", jobID, "attempts", attempts, "error", err)
		q.markStatus(ctx, jobID, store.JobFailed, attempts, err.Error())
		q.recordJob(ctx, "failed")
		q.clearInFlight()
		return
	}

	attempts++
	q.log.Warn("job failed, will retry", "job_id", jobID, "attempt", attempts, "error", err)
	q.markStatus(ctx, jobID, store.JobPending, attempts, err.Error())
	q.recordJob(ctx, "retried")
	if sleepErr := sleep(ctx, q.cfg.Backoff); sleepErr != nil {
		q.clearInFlight()
		return
	}

	q.mu.Lock()
	q.inFlight = ""
	q.items = append(q.items, jobID)
	q.attempts[jobID] = attempts
	q.gaugeDepth(1)
	q.mu.Unlock()
}

// gaugeDepth moves the queue-depth gauge. No-op without metrics.
func (q *Queue) gaugeDepth(delta int64) {
	if q.metrics != nil {
		q.metrics.QueueDepth.Add(context.Background(), delta)
	}
}

// recordJob counts one finished attempt by outcome. No-op without metrics.
func (q *Queue) recordJob(ctx context.Context, outcome string) {
	if q.metrics != nil {
		q.metrics.RecordJob(ctx, outcome)
	}
}

func (q *Queue) clearInFlight() {
	q.mu.Lock()
	q.inFlight = ""
	q.mu.Unlock()
}

// observeDuration folds a sample into the wait estimate (simple EWMA).
func (q *Queue) observeDuration(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.avgDuration == 0 {
		q.avgDuration = d
		return
	}
	q.avgDuration = (q.avgDuration*3 + d) / 4
}

// markStatus persists a job state transition. Store failures are logged and
// swallowed: the in-memory queue stays authoritative for this lifetime, and
// recovery tolerates stale rows.
func (q *Queue) markStatus(ctx context.Context, jobID string, status store.JobStatus, attempts int, lastError string) {
	if err := q.store.UpdateJobStatus(ctx, jobID, status, attempts, lastError); err != nil {
		q.log.Error("persist job status", "job_id", jobID, "status", status, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
