package models

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobKindNotification routes a job to the notification delivery handler.
const JobKindNotification = "notification"

// DeliveryJob is a durable work item. Status transitions are monotonic:
// pending -> processing -> {completed | failed}, with processing -> pending
// only through the bounded-retry and stale-reclaim paths. Attempts only
// increases, incremented at claim time.
type DeliveryJob struct {
	ID            string          `json:"id" db:"id"`
	Kind          string          `json:"kind" db:"kind"`
	Payload       json.RawMessage `json:"payload" db:"payload"`
	Status        JobStatus       `json:"status" db:"status"`
	Attempts      int             `json:"attempts" db:"attempts"`
	LastAttemptAt *time.Time      `json:"last_attempt_at" db:"last_attempt_at"`
	NextAttemptAt time.Time       `json:"next_attempt_at" db:"next_attempt_at"`
	CompletedAt   *time.Time      `json:"completed_at" db:"completed_at"`
	Error         *string         `json:"error" db:"error"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// DeliveryRequest is the fully resolved single-recipient payload carried by
// a notification job. Fan-out already happened when it was enqueued.
type DeliveryRequest struct {
	RecipientID      string           `json:"recipient_id"`
	Kind             NotificationKind `json:"kind"`
	RelatedTaskID    *string          `json:"related_task_id,omitempty"`
	RelatedProjectID *string          `json:"related_project_id,omitempty"`
	Message          string           `json:"message"`
	Payload          JSONMap          `json:"payload"`
}
