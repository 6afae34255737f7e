package models

import "time"

type NotificationKind string

const (
	KindComment          NotificationKind = "comment"
	KindReply            NotificationKind = "reply"
	KindAssignment       NotificationKind = "assignment"
	KindDueDate          NotificationKind = "due_date"
	KindPriority         NotificationKind = "priority"
	KindProjectInvite    NotificationKind = "project_invite"
	KindProjectCompleted NotificationKind = "project_completed"
)

// Notification is the durable per-recipient record. Only IsRead is ever
// mutated after creation.
type Notification struct {
	ID               string           `json:"id" db:"id"`
	RecipientID      string           `json:"recipient_id" db:"recipient_id"`
	Kind             NotificationKind `json:"kind" db:"kind"`
	RelatedTaskID    *string          `json:"related_task_id,omitempty" db:"related_task_id"`
	RelatedProjectID *string          `json:"related_project_id,omitempty" db:"related_project_id"`
	Message          string           `json:"message" db:"message"`
	Payload          JSONMap          `json:"payload" db:"payload"`
	IsRead           bool             `json:"is_read" db:"is_read"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// NotificationListFilter narrows ListForUser results.
type NotificationListFilter struct {
	UnreadOnly bool
	Kind       *NotificationKind
	Page       int
	Limit      int
}

// PushToken is the provider token registered by a user's device. A NULL
// token means the user has no reachable device.
type PushToken struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Token     *string   `json:"token" db:"token"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
