package google

import (
	"context"
	"fmt"
	"log/slog"
	"notification-service/internal/models"
	"notification-service/internal/repository"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// PushItem is one provider push message before batching.
type PushItem struct {
	UserID string
	Token  string
	Title  string
	Body   string
	Data   map[string]string
}

type FirebaseConfig struct {
	CredentialsPath string
	ProjectID       string
	BatchSize       int
}

// fcmSender is the slice of the FCM messaging client the dispatcher uses.
type fcmSender interface {
	SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error)
}

// PushDispatcher sends provider push messages and reconciles per-message
// failure tickets. Push is strictly best-effort layered on top of the
// durable record: no error here ever fails a delivery job.
type PushDispatcher struct {
	client    fcmSender
	tokenRepo repository.PushTokenRepository
	batchSize int

	// classifies a ticket error as "device permanently unreachable"
	isUnregistered func(error) bool
}

// NewPushDispatcher initializes the FCM client. Missing credentials degrade
// push to a permanent no-op instead of failing startup.
func NewPushDispatcher(cfg *FirebaseConfig, tokenRepo repository.PushTokenRepository) (*PushDispatcher, error) {
	dispatcher := &PushDispatcher{
		tokenRepo:      tokenRepo,
		batchSize:      cfg.BatchSize,
		isUnregistered: messaging.IsRegistrationTokenNotRegistered,
	}
	if dispatcher.batchSize <= 0 || dispatcher.batchSize > 500 {
		dispatcher.batchSize = 500 // FCM batch limit
	}

	if cfg.CredentialsPath == "" {
		slog.Warn("firebase credentials not configured, push delivery disabled")
		return dispatcher, nil
	}

	ctx := context.Background()
	opt := option.WithCredentialsFile(cfg.CredentialsPath)
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID: cfg.ProjectID,
	}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %v", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %v", err)
	}

	dispatcher.client = client
	return dispatcher, nil
}

// Enabled reports whether a provider client is configured.
func (d *PushDispatcher) Enabled() bool {
	return d.client != nil
}

// Send pushes one notification to the user's registered device. A missing
// or malformed token is a silent no-op, not an error.
func (d *PushDispatcher) Send(ctx context.Context, userID, title, body string, data map[string]string) {
	if !d.Enabled() {
		return
	}

	token, err := d.tokenRepo.GetToken(ctx, userID)
	if err != nil {
		slog.Warn("failed to look up push token", "user_id", userID, "error", err)
		return
	}
	if token == nil || !ValidPushToken(*token) {
		return
	}

	d.SendAll(ctx, []PushItem{{
		UserID: userID,
		Token:  *token,
		Title:  title,
		Body:   body,
		Data:   data,
	}})
}

// SendAll batches items into provider-sized chunks, sends each chunk, and
// reconciles the per-message tickets.
func (d *PushDispatcher) SendAll(ctx context.Context, items []PushItem) {
	if !d.Enabled() || len(items) == 0 {
		return
	}

	for _, chunk := range chunkItems(items, d.batchSize) {
		messages := make([]*messaging.Message, 0, len(chunk))
		for _, item := range chunk {
			messages = append(messages, &messaging.Message{
				Token: item.Token,
				Notification: &messaging.Notification{
					Title: item.Title,
					Body:  item.Body,
				},
				Data: item.Data,
				Android: &messaging.AndroidConfig{
					Priority: "high",
				},
			})
		}

		response, err := d.client.SendEach(ctx, messages)
		if err != nil {
			slog.Warn("push batch send failed", "count", len(messages), "error", err)
			continue
		}

		d.reconcileTickets(ctx, chunk, response)
	}
}

// reconcileTickets inspects per-message results. A ticket reporting the
// device as permanently unreachable clears that user's stored token;
// clearing an already-null token is a no-op. Other errors are logged only.
func (d *PushDispatcher) reconcileTickets(ctx context.Context, items []PushItem, response *messaging.BatchResponse) {
	for i, result := range response.Responses {
		if result.Success || i >= len(items) {
			continue
		}

		item := items[i]
		if d.isUnregistered(result.Error) {
			slog.Info("push token no longer registered, revoking", "user_id", item.UserID)
			if err := d.tokenRepo.ClearToken(ctx, item.UserID); err != nil {
				slog.Warn("failed to clear revoked push token", "user_id", item.UserID, "error", err)
			}
			continue
		}

		slog.Warn("push ticket error", "user_id", item.UserID, "error", result.Error)
	}
}

// ValidPushToken rejects obviously malformed provider tokens before a send
// is attempted.
func ValidPushToken(token string) bool {
	if len(token) < 10 {
		return false
	}
	return !strings.ContainsAny(token, " \t\n")
}

// TitleForKind maps a notification kind to the push title. Unknown kinds
// fall back to a generic title.
func TitleForKind(kind models.NotificationKind) string {
	switch kind {
	case models.KindComment:
		return "New Comment"
	case models.KindReply:
		return "New Reply"
	case models.KindAssignment:
		return "Task Assigned"
	case models.KindDueDate:
		return "Due Date Changed"
	case models.KindPriority:
		return "Priority Changed"
	case models.KindProjectInvite:
		return "Project Invitation"
	case models.KindProjectCompleted:
		return "Project Completed"
	default:
		return "New Notification"
	}
}

func chunkItems(items []PushItem, size int) [][]PushItem {
	chunks := [][]PushItem{}
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
