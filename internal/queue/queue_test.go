package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomasrey88/plantavoz/internal/store"
	storemock "github.com/tomasrey88/plantavoz/internal/store/mock"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() Config {
	return Config{
		MaxDepth:   50,
		MaxRetries: 3,
		Backoff:    time.Millisecond,
		JobTimeout: time.Second,
		Pause:      time.Millisecond,
	}
}

func seedJob(t *testing.T, st *storemock.Store, id string, status store.JobStatus, attempts int) {
	t.Helper()
	if err := st.CreateJob(context.Background(), store.TranscriptionJob{ID: id}); err != nil {
		t.Fatalf("seed job %s: %v", id, err)
	}
	if err := st.UpdateJobStatus(context.Background(), id, status, attempts, ""); err != nil {
		t.Fatalf("seed job %s status: %v", id, err)
	}
}

// waitStatus polls until the job reaches status or the deadline passes.
func waitStatus(t *testing.T, st *storemock.Store, id string, want store.JobStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := st.JobStatusOf(id); ok && got == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	got, _ := st.JobStatusOf(id)
	t.Fatalf("job %s never reached %s (last seen %s)", id, want, got)
}

func TestEnqueueIdempotent(t *testing.T) {
	t.Parallel()

	q := New(fastConfig(), storemock.New(), nil, WithLogger(discard()))

	if !q.Enqueue("j1") || !q.Enqueue("j1") {
		t.Fatal("re-enqueueing a waiting job must report accepted")
	}
	if got := q.Status().QueueLength; got != 1 {
		t.Errorf("QueueLength = %d, want 1 after duplicate enqueue", got)
	}
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	cfg.MaxDepth = 2
	q := New(cfg, storemock.New(), nil, WithLogger(discard()))

	if !q.Enqueue("j1") || !q.Enqueue("j2") {
		t.Fatal("enqueue below capacity failed")
	}
	if q.Enqueue("j3") {
		t.Error("enqueue above max depth must be rejected")
	}
	if !q.Enqueue("j2") {
		t.Error("duplicate of a waiting job must be accepted even at capacity")
	}
}

func TestWorkerProcessesFIFO(t *testing.T) {
	t.Parallel()

	st := storemock.New()
	seedJob(t, st, "j1", store.JobQueued, 0)
	seedJob(t, st, "j2", store.JobQueued, 0)

	processed := make(chan string, 2)
	q := New(fastConfig(), st, func(_ context.Context, id string) error {
		processed <- id
		return nil
	}, WithLogger(discard()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue("j1")
	q.Enqueue("j2")

	for _, want := range []string{"j1", "j2"} {
		select {
		case got := <-processed:
			if got != want {
				t.Fatalf("processed %s, want %s (FIFO)", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
	waitStatus(t, st, "j1", store.JobCompleted)
	waitStatus(t, st, "j2", store.JobCompleted)
}

func TestWorkerRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	st := storemock.New()
	seedJob(t, st, "j1", store.JobQueued, 0)

	var calls atomic.Int32
	q := New(fastConfig(), st, func(context.Context, string) error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	}, WithLogger(discard()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue("j1")
	waitStatus(t, st, "j1", store.JobCompleted)
	if got := calls.Load(); got != 2 {
		t.Errorf("process calls = %d, want 2", got)
	}
}

func TestWorkerExhaustsRetries(t *testing.T) {
	t.Parallel()

	st := storemock.New()
	seedJob(t, st, "j1", store.JobQueued, 0)

	cfg := fastConfig()
	cfg.MaxRetries = 2

	var calls atomic.Int32
	q := New(cfg, st, func(context.Context, string) error {
		calls.Add(1)
		return errors.New("stt unreachable")
	}, WithLogger(discard()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue("j1")
	waitStatus(t, st, "j1", store.JobFailed)

	// Initial attempt plus two retries.
	if got := calls.Load(); got != 3 {
		t.Errorf("process calls = %d, want 3", got)
	}
	job, err := st.Job(context.Background(), "j1")
	if err != nil {
		t.Fatal(err)
	}
	if job.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", job.Attempts)
	}
	if job.LastError != "stt unreachable" {
		t.Errorf("LastError = %q", job.LastError)
	}
}

func TestWorkerTimeoutFeedsRetryPolicy(t *testing.T) {
	t.Parallel()

	st := storemock.New()
	seedJob(t, st, "j1", store.JobQueued, 0)

	cfg := fastConfig()
	cfg.MaxRetries = 1
	cfg.JobTimeout = 5 * time.Millisecond

	q := New(cfg, st, func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithLogger(discard()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue("j1")
	waitStatus(t, st, "j1", store.JobFailed)
}

func TestRecover(t *testing.T) {
	t.Parallel()

	st := storemock.New()
	seedJob(t, st, "stale", store.JobProcessing, 1)
	seedJob(t, st, "waiting", store.JobPending, 0)
	seedJob(t, st, "queued", store.JobQueued, 0)
	seedJob(t, st, "done", store.JobCompleted, 0)

	q := New(fastConfig(), st, nil, WithLogger(discard()))

	n, err := q.Recover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("recovered = %d, want 3", n)
	}
	if got, _ := st.JobStatusOf("stale"); got != store.JobPending {
		t.Errorf("stale processing job status = %s, want PENDING reset", got)
	}
	if got := q.Status().QueueLength; got != 3 {
		t.Errorf("QueueLength = %d, want 3", got)
	}
}

func TestRecoverBoundedByDepth(t *testing.T) {
	t.Parallel()

	st := storemock.New()
	seedJob(t, st, "j1", store.JobPending, 0)
	seedJob(t, st, "j2", store.JobPending, 0)
	seedJob(t, st, "j3", store.JobPending, 0)

	cfg := fastConfig()
	cfg.MaxDepth = 2
	q := New(cfg, st, nil, WithLogger(discard()))

	n, err := q.Recover(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("recovered = %d, want 2 (bounded by max depth)", n)
	}
}
