package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"notification-service/internal/models"
	"notification-service/internal/repository"
	"sync"
	"time"
)

const (
	defaultIdleBackoff   = 2 * time.Second
	defaultStaleLease    = 5 * time.Minute
	defaultReclaimPeriod = time.Minute
)

// Handler executes one claimed delivery job.
type Handler func(ctx context.Context, job *models.DeliveryJob) error

// Worker runs one or more claim loops against the durable job queue. Each
// loop claims the oldest eligible pending job, dispatches it by kind, and
// records the outcome. A handler failure never crashes the process.
type Worker struct {
	jobRepo     repository.JobRepository
	handlers    map[string]Handler
	concurrency int
	maxAttempts int
	idleBackoff time.Duration
	staleLease  time.Duration
}

// NewWorker creates a delivery worker
func NewWorker(jobRepo repository.JobRepository, concurrency, maxAttempts int) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Worker{
		jobRepo:     jobRepo,
		handlers:    make(map[string]Handler),
		concurrency: concurrency,
		maxAttempts: maxAttempts,
		idleBackoff: defaultIdleBackoff,
		staleLease:  defaultStaleLease,
	}
}

// RegisterHandler binds a job kind to its handler. Must be called before
// Start.
func (w *Worker) RegisterHandler(kind string, handler Handler) {
	w.handlers[kind] = handler
}

// Start launches the claim loops and the stale-job reclaim sweep, blocking
// until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	var wg sync.WaitGroup

	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.runLoop(ctx, id)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reclaimLoop(ctx)
	}()

	wg.Wait()
}

func (w *Worker) runLoop(ctx context.Context, id int) {
	slog.Info("delivery worker started", "worker", id)

	for {
		if ctx.Err() != nil {
			slog.Info("delivery worker stopped", "worker", id)
			return
		}

		job, err := w.jobRepo.ClaimNext(ctx)
		if err != nil {
			slog.Error("failed to claim job", "worker", id, "error", err)
			w.idle(ctx)
			continue
		}
		if job == nil {
			w.idle(ctx)
			continue
		}

		w.process(ctx, job)
	}
}

// process dispatches one claimed job and records the outcome. The job is
// already in processing state with attempts incremented by the claim.
func (w *Worker) process(ctx context.Context, job *models.DeliveryJob) {
	handler, ok := w.handlers[job.Kind]
	if !ok {
		slog.Error("no handler for job kind", "job_id", job.ID, "kind", job.Kind)
		w.fail(ctx, job, fmt.Sprintf("no handler for kind %q", job.Kind))
		return
	}

	err := w.dispatch(ctx, handler, job)
	if err == nil {
		if markErr := w.jobRepo.MarkCompleted(ctx, job.ID); markErr != nil {
			slog.Error("failed to mark job completed", "job_id", job.ID, "error", markErr)
		}
		return
	}

	slog.Warn("delivery job attempt failed", "job_id", job.ID, "attempt", job.Attempts, "error", err)

	if job.Attempts >= w.maxAttempts {
		w.fail(ctx, job, err.Error())
		return
	}

	// Quadratic backoff between attempts.
	delay := time.Duration(job.Attempts*job.Attempts) * time.Second
	if rescheduleErr := w.jobRepo.Reschedule(ctx, job.ID, err.Error(), time.Now().Add(delay)); rescheduleErr != nil {
		slog.Error("failed to reschedule job", "job_id", job.ID, "error", rescheduleErr)
	}
}

// dispatch shields the claim loop from a panicking handler.
func (w *Worker) dispatch(ctx context.Context, handler Handler, job *models.DeliveryJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (w *Worker) fail(ctx context.Context, job *models.DeliveryJob, errMsg string) {
	if err := w.jobRepo.MarkFailed(ctx, job.ID, errMsg); err != nil {
		slog.Error("failed to mark job failed", "job_id", job.ID, "error", err)
	}
}

// reclaimLoop returns jobs stuck in processing past the lease to pending.
// A crashed worker would otherwise strand its claimed job forever.
func (w *Worker) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(defaultReclaimPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reclaimed, err := w.jobRepo.ReclaimStale(ctx, w.staleLease)
			if err != nil {
				slog.Error("failed to reclaim stale jobs", "error", err)
				continue
			}
			if reclaimed > 0 {
				slog.Warn("reclaimed stale processing jobs", "count", reclaimed)
			}
		case <-ctx.Done():
			return
		}
	}
}

// idle sleeps for the jittered backoff so an empty queue is not busy-polled.
func (w *Worker) idle(ctx context.Context) {
	jitter := time.Duration(rand.Int63n(int64(w.idleBackoff / 2)))
	select {
	case <-time.After(w.idleBackoff + jitter):
	case <-ctx.Done():
	}
}
