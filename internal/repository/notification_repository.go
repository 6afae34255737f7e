package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"notification-service/internal/models"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a record does not exist or is not owned by
// the calling user. Handlers map it to 404.
var ErrNotFound = errors.New("record not found")

// NotificationRepository handles notification database operations
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListForUser(ctx context.Context, userID string, filter models.NotificationListFilter) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
	DeleteReadBefore(ctx context.Context, horizon time.Time) (int64, error)
}

type notificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_id, kind, related_task_id, related_project_id, message, payload, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, '{}'::jsonb), FALSE, NOW())
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		notification.ID,
		notification.RecipientID,
		notification.Kind,
		notification.RelatedTaskID,
		notification.RelatedProjectID,
		notification.Message,
		notification.Payload,
	).Scan(&notification.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID string, filter models.NotificationListFilter) ([]*models.Notification, error) {
	query := `
		SELECT id, recipient_id, kind, related_task_id, related_project_id, message, payload, is_read, created_at
		FROM notifications
		WHERE recipient_id = $1`
	args := []any{userID}
	argIndex := 2

	if filter.UnreadOnly {
		query += " AND is_read = FALSE"
	}
	if filter.Kind != nil {
		query += fmt.Sprintf(" AND kind = $%d", argIndex)
		args = append(args, *filter.Kind)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, (page-1)*limit)

	notifications := []*models.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`

	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	notification := &models.Notification{}
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND recipient_id = $2
		RETURNING id, recipient_id, kind, related_task_id, related_project_id, message, payload, is_read, created_at`

	err := r.db.GetContext(ctx, notification, query, id, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}

	return notification, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND is_read = FALSE`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read: %w", err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return updated, nil
}

func (r *notificationRepository) Delete(ctx context.Context, id, userID string) error {
	query := `DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *notificationRepository) DeleteReadBefore(ctx context.Context, horizon time.Time) (int64, error) {
	query := `DELETE FROM notifications WHERE is_read = TRUE AND created_at < $1`

	result, err := r.db.ExecContext(ctx, query, horizon)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep read notifications: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return deleted, nil
}
