package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"notification-service/internal/models"
	"notification-service/internal/services"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

// fakeJobRepo is an in-memory durable queue with the same atomic claim
// contract as the SQL implementation.
type fakeJobRepo struct {
	mu     sync.Mutex
	jobs   map[string]*models.DeliveryJob
	nextID int
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]*models.DeliveryJob{}}
}

func (f *fakeJobRepo) Enqueue(ctx context.Context, kind string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("job-%d", f.nextID)
	f.jobs[id] = &models.DeliveryJob{
		ID:            id,
		Kind:          kind,
		Payload:       body,
		Status:        models.JobStatusPending,
		NextAttemptAt: time.Now(),
		CreatedAt:     time.Now(),
	}
	return id, nil
}

func (f *fakeJobRepo) ClaimNext(ctx context.Context) (*models.DeliveryJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.jobs))
	for id := range f.jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return f.jobs[ids[i]].CreatedAt.Before(f.jobs[ids[j]].CreatedAt) })

	now := time.Now()
	for _, id := range ids {
		job := f.jobs[id]
		if job.Status != models.JobStatusPending || job.NextAttemptAt.After(now) {
			continue
		}
		job.Status = models.JobStatusProcessing
		job.Attempts++
		attemptAt := now
		job.LastAttemptAt = &attemptAt
		copied := *job
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeJobRepo) MarkCompleted(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.Status != models.JobStatusProcessing {
		return nil
	}
	job.Status = models.JobStatusCompleted
	completedAt := time.Now()
	job.CompletedAt = &completedAt
	return nil
}

func (f *fakeJobRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.Status != models.JobStatusProcessing {
		return nil
	}
	job.Status = models.JobStatusFailed
	job.Error = &errMsg
	return nil
}

func (f *fakeJobRepo) Reschedule(ctx context.Context, id string, errMsg string, nextAttemptAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.Status != models.JobStatusProcessing {
		return nil
	}
	job.Status = models.JobStatusPending
	job.Error = &errMsg
	job.NextAttemptAt = nextAttemptAt
	return nil
}

func (f *fakeJobRepo) ReclaimStale(ctx context.Context, lease time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var reclaimed int64
	cutoff := time.Now().Add(-lease)
	for _, job := range f.jobs {
		if job.Status == models.JobStatusProcessing && job.LastAttemptAt != nil && job.LastAttemptAt.Before(cutoff) {
			job.Status = models.JobStatusPending
			job.NextAttemptAt = time.Now()
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, id string) (*models.DeliveryJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobRepo) CountByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[models.JobStatus]int{}
	for _, job := range f.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

// fakeNotificationRepo stores notifications in memory for the round-trip
// tests. Only the operations the delivery handler touches do real work.
type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications []*models.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.CreatedAt = time.Now()
	stored := *n
	f.notifications = append(f.notifications, &stored)
	return nil
}

func (f *fakeNotificationRepo) ListForUser(ctx context.Context, userID string, filter models.NotificationListFilter) ([]*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []*models.Notification{}
	for _, n := range f.notifications {
		if n.RecipientID == userID {
			copied := *n
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (f *fakeNotificationRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	return 0, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func (f *fakeNotificationRepo) Delete(ctx context.Context, id, userID string) error {
	return nil
}

func (f *fakeNotificationRepo) DeleteReadBefore(ctx context.Context, horizon time.Time) (int64, error) {
	return 0, nil
}

func mustClaim(t *testing.T, repo *fakeJobRepo) *models.DeliveryJob {
	t.Helper()
	job, err := repo.ClaimNext(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, job)
	return job
}

// ============================================================================
// TEST SUITE: CLAIM SEMANTICS
// ============================================================================

func TestClaim_AtMostOneWorkerWins(t *testing.T) {
	repo := newFakeJobRepo()
	_, err := repo.Enqueue(context.Background(), models.JobKindNotification, map[string]string{"k": "v"})
	assert.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	claims := make(chan *models.DeliveryJob, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := repo.ClaimNext(context.Background())
			assert.NoError(t, err)
			if job != nil {
				claims <- job
			}
		}()
	}
	wg.Wait()
	close(claims)

	claimed := 0
	for range claims {
		claimed++
	}
	assert.Equal(t, 1, claimed, "exactly one worker claims the job, the rest see it as unclaimable")
}

func TestClaim_IncrementsAttemptsAndSetsProcessing(t *testing.T) {
	repo := newFakeJobRepo()
	id, _ := repo.Enqueue(context.Background(), models.JobKindNotification, map[string]string{})

	job := mustClaim(t, repo)

	assert.Equal(t, id, job.ID)
	assert.Equal(t, models.JobStatusProcessing, job.Status)
	assert.Equal(t, 1, job.Attempts)
}

func TestClaim_SkipsJobsScheduledForLater(t *testing.T) {
	repo := newFakeJobRepo()
	id, _ := repo.Enqueue(context.Background(), models.JobKindNotification, map[string]string{})
	repo.mu.Lock()
	repo.jobs[id].NextAttemptAt = time.Now().Add(time.Hour)
	repo.mu.Unlock()

	job, err := repo.ClaimNext(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, job)
}

// ============================================================================
// TEST SUITE: JOB PROCESSING
// ============================================================================

func TestProcess_SuccessCompletesJob(t *testing.T) {
	repo := newFakeJobRepo()
	id, _ := repo.Enqueue(context.Background(), models.JobKindNotification, map[string]string{})

	w := NewWorker(repo, 1, 3)
	handled := false
	w.RegisterHandler(models.JobKindNotification, func(ctx context.Context, job *models.DeliveryJob) error {
		handled = true
		return nil
	})

	w.process(context.Background(), mustClaim(t, repo))

	assert.True(t, handled)
	stored, _ := repo.GetByID(context.Background(), id)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
}

func TestProcess_FailureBelowMaxAttemptsReschedules(t *testing.T) {
	repo := newFakeJobRepo()
	id, _ := repo.Enqueue(context.Background(), models.JobKindNotification, map[string]string{})

	w := NewWorker(repo, 1, 3)
	w.RegisterHandler(models.JobKindNotification, func(ctx context.Context, job *models.DeliveryJob) error {
		return errors.New("provider unavailable")
	})

	w.process(context.Background(), mustClaim(t, repo))

	stored, _ := repo.GetByID(context.Background(), id)
	assert.Equal(t, models.JobStatusPending, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, "provider unavailable", *stored.Error)
	assert.True(t, stored.NextAttemptAt.After(time.Now()), "retry is delayed by backoff")
}

func TestProcess_FailureAtMaxAttemptsIsTerminal(t *testing.T) {
	repo := newFakeJobRepo()
	id, _ := repo.Enqueue(context.Background(), models.JobKindNotification, map[string]string{})

	w := NewWorker(repo, 1, 1)
	w.RegisterHandler(models.JobKindNotification, func(ctx context.Context, job *models.DeliveryJob) error {
		return errors.New("still broken")
	})

	w.process(context.Background(), mustClaim(t, repo))

	stored, _ := repo.GetByID(context.Background(), id)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Equal(t, "still broken", *stored.Error)
}

func TestProcess_UnknownKindFailsWithoutCrash(t *testing.T) {
	repo := newFakeJobRepo()
	id, _ := repo.Enqueue(context.Background(), "unknown-kind", map[string]string{})

	w := NewWorker(repo, 1, 3)

	w.process(context.Background(), mustClaim(t, repo))

	stored, _ := repo.GetByID(context.Background(), id)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Contains(t, *stored.Error, "no handler")
}

func TestProcess_PanickingHandlerDoesNotCrashWorker(t *testing.T) {
	repo := newFakeJobRepo()
	id, _ := repo.Enqueue(context.Background(), models.JobKindNotification, map[string]string{})

	w := NewWorker(repo, 1, 1)
	w.RegisterHandler(models.JobKindNotification, func(ctx context.Context, job *models.DeliveryJob) error {
		panic("boom")
	})

	assert.NotPanics(t, func() {
		w.process(context.Background(), mustClaim(t, repo))
	})

	stored, _ := repo.GetByID(context.Background(), id)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Contains(t, *stored.Error, "handler panic")
}

func TestReclaimStale_ReturnsStrandedJobsToPending(t *testing.T) {
	repo := newFakeJobRepo()
	id, _ := repo.Enqueue(context.Background(), models.JobKindNotification, map[string]string{})
	mustClaim(t, repo)

	// Simulate a worker that crashed 10 minutes ago.
	repo.mu.Lock()
	stale := time.Now().Add(-10 * time.Minute)
	repo.jobs[id].LastAttemptAt = &stale
	repo.mu.Unlock()

	reclaimed, err := repo.ReclaimStale(context.Background(), 5*time.Minute)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), reclaimed)

	job := mustClaim(t, repo)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, 2, job.Attempts)
}

// ============================================================================
// TEST SUITE: END TO END DELIVERY
// ============================================================================

func TestRoundTrip_EnqueueProcessList(t *testing.T) {
	jobRepo := newFakeJobRepo()
	notificationRepo := newFakeNotificationRepo()
	notificationService := services.NewNotificationService(notificationRepo, nil)
	handler := NewNotificationDeliveryHandler(notificationService, nil, nil, nil)

	w := NewWorker(jobRepo, 1, 3)
	w.RegisterHandler(models.JobKindNotification, handler.Handle)

	taskID := "T-1"
	request := models.DeliveryRequest{
		RecipientID:   "user-1",
		Kind:          models.KindComment,
		RelatedTaskID: &taskID,
		Message:       "Alice commented on \"Ship it\"",
		Payload:       models.JSONMap{"actor_name": "Alice", "task_title": "Ship it"},
	}
	id, err := jobRepo.Enqueue(context.Background(), models.JobKindNotification, request)
	assert.NoError(t, err)

	w.process(context.Background(), mustClaim(t, jobRepo))

	stored, _ := jobRepo.GetByID(context.Background(), id)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)

	listed, err := notificationService.ListForUser(context.Background(), "user-1", models.NotificationListFilter{})
	assert.NoError(t, err)
	assert.Len(t, listed, 1)
	assert.Equal(t, request.Message, listed[0].Message)
	assert.Equal(t, "Alice", listed[0].Payload["actor_name"])
	assert.Equal(t, taskID, *listed[0].RelatedTaskID)
	assert.False(t, listed[0].IsRead)
}

func TestRoundTrip_MalformedPayloadFails(t *testing.T) {
	jobRepo := newFakeJobRepo()
	notificationRepo := newFakeNotificationRepo()
	notificationService := services.NewNotificationService(notificationRepo, nil)
	handler := NewNotificationDeliveryHandler(notificationService, nil, nil, nil)

	w := NewWorker(jobRepo, 1, 1)
	w.RegisterHandler(models.JobKindNotification, handler.Handle)

	id, err := jobRepo.Enqueue(context.Background(), models.JobKindNotification, "not an object")
	assert.NoError(t, err)

	w.process(context.Background(), mustClaim(t, jobRepo))

	stored, _ := jobRepo.GetByID(context.Background(), id)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
}
