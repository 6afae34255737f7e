package repository

import (
	"context"
	"database/sql"
	"fmt"
	"notification-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// DomainRepository reads the tracker's domain graph: tasks, projects,
// workspaces and their membership tables. The pipeline never writes these.
type DomainRepository interface {
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	GetTaskAssigneeIDs(ctx context.Context, taskID string) ([]string, error)
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	GetProjectMemberIDs(ctx context.Context, projectID string) ([]string, error)
	GetWorkspaceOwnerIDs(ctx context.Context, workspaceID string) ([]string, error)
	GetCommentAuthorID(ctx context.Context, commentID string) (string, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

type domainRepository struct {
	db *sqlx.DB
}

// NewDomainRepository creates a new domain graph repository
func NewDomainRepository(db *sqlx.DB) DomainRepository {
	return &domainRepository{db: db}
}

func (r *domainRepository) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	task := &models.Task{}
	query := `SELECT id, title, creator_id, project_id FROM tasks WHERE id = $1`

	err := r.db.GetContext(ctx, task, query, taskID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

func (r *domainRepository) GetTaskAssigneeIDs(ctx context.Context, taskID string) ([]string, error) {
	ids := []string{}
	query := `SELECT user_id FROM task_assignees WHERE task_id = $1`

	if err := r.db.SelectContext(ctx, &ids, query, taskID); err != nil {
		return nil, fmt.Errorf("failed to get task assignees: %w", err)
	}

	return ids, nil
}

func (r *domainRepository) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	project := &models.Project{}
	query := `SELECT id, name, workspace_id FROM projects WHERE id = $1`

	err := r.db.GetContext(ctx, project, query, projectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

func (r *domainRepository) GetProjectMemberIDs(ctx context.Context, projectID string) ([]string, error) {
	ids := []string{}
	query := `SELECT user_id FROM project_members WHERE project_id = $1`

	if err := r.db.SelectContext(ctx, &ids, query, projectID); err != nil {
		return nil, fmt.Errorf("failed to get project members: %w", err)
	}

	return ids, nil
}

func (r *domainRepository) GetWorkspaceOwnerIDs(ctx context.Context, workspaceID string) ([]string, error) {
	ids := []string{}
	query := `SELECT user_id FROM workspace_members WHERE workspace_id = $1 AND role = 'owner'`

	if err := r.db.SelectContext(ctx, &ids, query, workspaceID); err != nil {
		return nil, fmt.Errorf("failed to get workspace owners: %w", err)
	}

	return ids, nil
}

func (r *domainRepository) GetCommentAuthorID(ctx context.Context, commentID string) (string, error) {
	var authorID string
	query := `SELECT author_id FROM comments WHERE id = $1`

	err := r.db.GetContext(ctx, &authorID, query, commentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get comment author: %w", err)
	}

	return authorID, nil
}

func (r *domainRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, display_name, email FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, user, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}
