package models

import "time"

// Event is a domain occurrence emitted by the tracker's CRUD layer. It is
// never persisted; it is the resolver's input and the template source for
// the rendered message.
type Event struct {
	ID           string           `json:"id"`
	Kind         NotificationKind `json:"kind"`
	ActorID      string           `json:"actor_id"`
	TaskID       *string          `json:"task_id,omitempty"`
	ProjectID    *string          `json:"project_id,omitempty"`
	WorkspaceID  *string          `json:"workspace_id,omitempty"`
	CommentID    *string          `json:"comment_id,omitempty"`
	TargetUserID *string          `json:"target_user_id,omitempty"`
	Payload      JSONMap          `json:"payload"`
	CreatedAt    time.Time        `json:"created_at"`
}
