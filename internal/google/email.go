package google

import (
	"log/slog"
	"notification-service/internal/models"
	"notification-service/internal/template"

	"gopkg.in/gomail.v2"
)

// EmailService sends best-effort notification emails. Only invitation and
// completion kinds go out by email; everything else stays in-app and push.
type EmailService struct {
	dialer *gomail.Dialer
}

// NewEmailService creates an SMTP email sender. An empty username disables
// email delivery without failing startup.
func NewEmailService(email, password string) *EmailService {
	if email == "" {
		slog.Warn("email credentials not configured, email delivery disabled")
		return &EmailService{}
	}
	d := gomail.NewDialer("smtp.gmail.com", 587, email, password)
	return &EmailService{dialer: d}
}

// Enabled reports whether an SMTP dialer is configured.
func (e *EmailService) Enabled() bool {
	return e.dialer != nil
}

// EmailWorthy reports whether a notification kind also goes out by email.
func EmailWorthy(kind models.NotificationKind) bool {
	return kind == models.KindProjectInvite || kind == models.KindProjectCompleted
}

// NotificationEmail sends the rendered notification to the recipient.
func (e *EmailService) NotificationEmail(to, name, subject, message string) error {
	if !e.Enabled() {
		return nil
	}
	m := gomail.NewMessage()
	m.SetHeader("From", e.dialer.Username)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", template.NotificationTemplate(name, message))
	return e.dialer.DialAndSend(m)
}
