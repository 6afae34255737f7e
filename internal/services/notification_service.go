package services

import (
	"context"
	"fmt"
	"log/slog"
	"notification-service/internal/models"
	"notification-service/internal/realtime"
	"notification-service/internal/repository"
	"time"

	"github.com/google/uuid"
)

// RetentionHorizon is how long read notifications are kept before the
// sweep removes them.
const RetentionHorizon = 30 * 24 * time.Hour

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Broadcaster pushes envelopes to a user's live connections. Delivery is
// best-effort; the durable store remains the source of truth.
type Broadcaster interface {
	SendToUser(userID string, envelope realtime.Envelope) bool
}

// NotificationService provides the durable notification store operations
// exposed to the API layer and to the delivery worker.
type NotificationService struct {
	notificationRepo repository.NotificationRepository
	hub              Broadcaster
}

// NewNotificationService creates a new notification service
func NewNotificationService(notificationRepo repository.NotificationRepository, hub Broadcaster) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		hub:              hub,
	}
}

// Create inserts the durable record for one recipient. The insert must
// commit before any push or socket side effect is attempted; the live
// NOTIFICATION_NEW signal here is best-effort only.
func (s *NotificationService) Create(ctx context.Context, request *models.DeliveryRequest) (*models.Notification, error) {
	if request.RecipientID == "" {
		return nil, fmt.Errorf("recipient ID cannot be empty")
	}
	if request.Message == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}

	notification := &models.Notification{
		ID:               uuid.New().String(),
		RecipientID:      request.RecipientID,
		Kind:             request.Kind,
		RelatedTaskID:    request.RelatedTaskID,
		RelatedProjectID: request.RelatedProjectID,
		Message:          request.Message,
		Payload:          request.Payload,
	}

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.broadcast(ctx, notification.RecipientID, realtime.EventNotificationNew, map[string]any{
		"notification": notification,
	})

	return notification, nil
}

// ListForUser returns a page of the user's notifications, newest first.
// Page size is bounded so a single request cannot pull a user's entire
// history.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, filter models.NotificationListFilter) ([]*models.Notification, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	} else if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	return s.notificationRepo.ListForUser(ctx, userID, filter)
}

// UnreadCount returns the user's number of unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("user ID cannot be empty")
	}
	return s.notificationRepo.UnreadCount(ctx, userID)
}

// MarkRead marks one notification read. Returns repository.ErrNotFound when
// the id does not belong to the caller.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	notification, err := s.notificationRepo.MarkRead(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, userID, realtime.EventNotificationRead, map[string]any{
		"notification_id": notification.ID,
		"unread_count":    s.unreadCountOrZero(ctx, userID),
	})

	return notification, nil
}

// MarkAllRead marks every unread notification read and returns how many
// were updated. Calling it again immediately returns 0.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.notificationRepo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.broadcast(ctx, userID, realtime.EventAllNotificationRead, map[string]any{
		"unread_count": 0,
	})

	return updated, nil
}

// Delete removes a notification owned by the caller.
func (s *NotificationService) Delete(ctx context.Context, id, userID string) error {
	if err := s.notificationRepo.Delete(ctx, id, userID); err != nil {
		return err
	}

	s.broadcast(ctx, userID, realtime.EventNotificationDeleted, map[string]any{
		"notification_id": id,
		"unread_count":    s.unreadCountOrZero(ctx, userID),
	})

	return nil
}

// StartRetentionSweep periodically deletes read notifications older than the
// retention horizon. Advisory cleanup; failures are logged and retried on
// the next tick.
func (s *NotificationService) StartRetentionSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, err := s.notificationRepo.DeleteReadBefore(ctx, time.Now().Add(-RetentionHorizon))
			if err != nil {
				slog.Error("retention sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				slog.Info("retention sweep removed read notifications", "deleted", deleted)
			}
		case <-ctx.Done():
			return
		}
	}
}

// broadcast pushes new read-state to the user's live connections. Failure
// to broadcast never fails the calling operation.
func (s *NotificationService) broadcast(ctx context.Context, userID, eventType string, data map[string]any) {
	if s.hub == nil {
		return
	}
	s.hub.SendToUser(userID, realtime.Envelope{Type: eventType, Data: data})
}

func (s *NotificationService) unreadCountOrZero(ctx context.Context, userID string) int {
	count, err := s.notificationRepo.UnreadCount(ctx, userID)
	if err != nil {
		slog.Warn("failed to count unread notifications for broadcast", "user_id", userID, "error", err)
		return 0
	}
	return count
}
