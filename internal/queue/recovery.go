package queue

import (
	"context"
	"fmt"

	"github.com/tomasrey88/plantavoz/internal/store"
)

// Recover scans the record store for jobs left over from a prior process
// lifetime and re-enqueues them, oldest first. Jobs found in PROCESSING are
// reset to PENDING first, since no attempt can have survived a restart.
// Re-enqueueing stops silently at the queue's max depth; the overflow stays
// pending in the store for the next recovery.
//
// Call before starting the worker.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	jobs, err := q.store.JobsByStatus(ctx, store.JobQueued, store.JobPending, store.JobProcessing)
	if err != nil {
		return 0, fmt.Errorf("queue: recover: scan jobs: %w", err)
	}

	recovered := 0
	for _, job := range jobs {
		if job.Status == store.JobProcessing {
			if err := q.store.UpdateJobStatus(ctx, job.ID, store.JobPending, job.Attempts, job.LastError); err != nil {
				q.log.Error("reset stale processing job", "job_id", job.ID, "error", err)
				continue
			}
		}
		if !q.enqueue(job.ID, job.Attempts) {
			q.log.Warn("recovery stopped at queue capacity", "recovered", recovered, "remaining", len(jobs)-recovered)
			break
		}
		recovered++
	}

	if recovered > 0 {
		q.log.Info("recovered unfinished transcription jobs", "count", recovered)
	}
	return recovered, nil
}
