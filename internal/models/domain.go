package models

import "time"

// Read models over the tracker's domain graph. These tables are owned by the
// workspace/project/task services; the pipeline only queries them to compute
// recipients and contact details.

type User struct {
	ID          string  `json:"id" db:"id"`
	DisplayName string  `json:"display_name" db:"display_name"`
	Email       *string `json:"email" db:"email"`
}

type Task struct {
	ID        string  `json:"id" db:"id"`
	Title     string  `json:"title" db:"title"`
	CreatorID string  `json:"creator_id" db:"creator_id"`
	ProjectID *string `json:"project_id" db:"project_id"`
}

type Project struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`
}

type Comment struct {
	ID       string `json:"id" db:"id"`
	TaskID   string `json:"task_id" db:"task_id"`
	AuthorID string `json:"author_id" db:"author_id"`
}

type WorkspaceRole string

const (
	WorkspaceRoleOwner  WorkspaceRole = "owner"
	WorkspaceRoleMember WorkspaceRole = "member"
)

type UserSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsActive  bool      `json:"is_active"`
}
