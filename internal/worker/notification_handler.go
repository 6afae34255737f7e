package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"notification-service/internal/google"
	"notification-service/internal/models"
	"notification-service/internal/repository"
	"notification-service/internal/services"
)

// NotificationDeliveryHandler executes "notification" jobs: the durable
// record is written first, then the best-effort channels are layered on
// top. A crash between "stored" and "pushed" loses only the push.
type NotificationDeliveryHandler struct {
	notificationService *services.NotificationService
	pushDispatcher      *google.PushDispatcher
	emailService        *google.EmailService
	domainRepo          repository.DomainRepository
}

// NewNotificationDeliveryHandler creates the handler for notification jobs
func NewNotificationDeliveryHandler(
	notificationService *services.NotificationService,
	pushDispatcher *google.PushDispatcher,
	emailService *google.EmailService,
	domainRepo repository.DomainRepository,
) *NotificationDeliveryHandler {
	return &NotificationDeliveryHandler{
		notificationService: notificationService,
		pushDispatcher:      pushDispatcher,
		emailService:        emailService,
		domainRepo:          domainRepo,
	}
}

// Handle processes one claimed delivery job. Only the durable write can
// fail the job; push, email and socket signals never propagate errors.
func (h *NotificationDeliveryHandler) Handle(ctx context.Context, job *models.DeliveryJob) error {
	var request models.DeliveryRequest
	if err := json.Unmarshal(job.Payload, &request); err != nil {
		return fmt.Errorf("failed to unmarshal delivery request: %w", err)
	}

	notification, err := h.notificationService.Create(ctx, &request)
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	h.sendPush(ctx, notification)
	h.sendEmail(ctx, notification)

	return nil
}

func (h *NotificationDeliveryHandler) sendPush(ctx context.Context, notification *models.Notification) {
	if h.pushDispatcher == nil {
		return
	}

	data := map[string]string{
		"notification_id": notification.ID,
		"kind":            string(notification.Kind),
	}
	if notification.RelatedTaskID != nil {
		data["task_id"] = *notification.RelatedTaskID
	}
	if notification.RelatedProjectID != nil {
		data["project_id"] = *notification.RelatedProjectID
	}

	h.pushDispatcher.Send(ctx, notification.RecipientID, google.TitleForKind(notification.Kind), notification.Message, data)
}

func (h *NotificationDeliveryHandler) sendEmail(ctx context.Context, notification *models.Notification) {
	if h.emailService == nil || !h.emailService.Enabled() || !google.EmailWorthy(notification.Kind) {
		return
	}

	user, err := h.domainRepo.GetUser(ctx, notification.RecipientID)
	if err != nil {
		slog.Warn("failed to look up recipient for email", "user_id", notification.RecipientID, "error", err)
		return
	}
	if user.Email == nil || *user.Email == "" {
		return
	}

	subject := google.TitleForKind(notification.Kind)
	if err := h.emailService.NotificationEmail(*user.Email, user.DisplayName, subject, notification.Message); err != nil {
		slog.Warn("failed to send notification email", "user_id", notification.RecipientID, "error", err)
	}
}
