package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"notification-service/internal/models"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// JobRepository owns the durable delivery queue. The claim is a single
// conditional update so that a job claimed by one worker is never visible
// as claimable by another.
type JobRepository interface {
	Enqueue(ctx context.Context, kind string, payload any) (string, error)
	ClaimNext(ctx context.Context) (*models.DeliveryJob, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, errMsg string, nextAttemptAt time.Time) error
	ReclaimStale(ctx context.Context, lease time.Duration) (int64, error)
	GetByID(ctx context.Context, id string) (*models.DeliveryJob, error)
	CountByStatus(ctx context.Context) (map[models.JobStatus]int, error)
}

type jobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new delivery job repository
func NewJobRepository(db *sqlx.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Enqueue(ctx context.Context, kind string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	id := uuid.New().String()
	query := `
		INSERT INTO delivery_jobs (id, kind, payload, status, attempts, next_attempt_at, created_at)
		VALUES ($1, $2, $3, 'pending', 0, NOW(), NOW())`

	if _, err := r.db.ExecContext(ctx, query, id, kind, body); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	return id, nil
}

// ClaimNext atomically moves the oldest eligible pending job to processing
// and increments its attempts. Returns nil when nothing is claimable.
func (r *jobRepository) ClaimNext(ctx context.Context) (*models.DeliveryJob, error) {
	job := &models.DeliveryJob{}
	query := `
		UPDATE delivery_jobs
		SET status = 'processing', attempts = attempts + 1, last_attempt_at = NOW()
		WHERE id = (
			SELECT id FROM delivery_jobs
			WHERE status = 'pending' AND next_attempt_at <= NOW()
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, kind, payload, status, attempts, last_attempt_at, next_attempt_at, completed_at, error, created_at`

	err := r.db.GetContext(ctx, job, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	return job, nil
}

func (r *jobRepository) MarkCompleted(ctx context.Context, id string) error {
	query := `
		UPDATE delivery_jobs
		SET status = 'completed', completed_at = NOW(), error = NULL
		WHERE id = $1 AND status = 'processing'`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}

func (r *jobRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	query := `
		UPDATE delivery_jobs
		SET status = 'failed', error = $2
		WHERE id = $1 AND status = 'processing'`

	if _, err := r.db.ExecContext(ctx, query, id, errMsg); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

// Reschedule returns a processing job to pending for a later retry attempt.
func (r *jobRepository) Reschedule(ctx context.Context, id string, errMsg string, nextAttemptAt time.Time) error {
	query := `
		UPDATE delivery_jobs
		SET status = 'pending', error = $2, next_attempt_at = $3
		WHERE id = $1 AND status = 'processing'`

	if _, err := r.db.ExecContext(ctx, query, id, errMsg, nextAttemptAt); err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}
	return nil
}

// ReclaimStale returns jobs left processing longer than the lease to
// pending. Covers workers that crashed between claim and outcome.
func (r *jobRepository) ReclaimStale(ctx context.Context, lease time.Duration) (int64, error) {
	query := `
		UPDATE delivery_jobs
		SET status = 'pending', next_attempt_at = NOW()
		WHERE status = 'processing' AND last_attempt_at < NOW() - $1::interval`

	result, err := r.db.ExecContext(ctx, query, fmt.Sprintf("%d seconds", int(lease.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale jobs: %w", err)
	}

	reclaimed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return reclaimed, nil
}

func (r *jobRepository) GetByID(ctx context.Context, id string) (*models.DeliveryJob, error) {
	job := &models.DeliveryJob{}
	query := `
		SELECT id, kind, payload, status, attempts, last_attempt_at, next_attempt_at, completed_at, error, created_at
		FROM delivery_jobs
		WHERE id = $1`

	err := r.db.GetContext(ctx, job, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job by ID: %w", err)
	}

	return job, nil
}

// CountByStatus reports queue depth per status for operator inspection.
func (r *jobRepository) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	rows := []struct {
		Status models.JobStatus `db:"status"`
		Count  int              `db:"count"`
	}{}
	query := `SELECT status, COUNT(*) AS count FROM delivery_jobs GROUP BY status`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}

	counts := make(map[models.JobStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}
