package event

import (
	"fmt"
	"notification-service/internal/models"
)

// RenderMessage turns a domain event into the notification text. The text
// is rendered once at fan-out time and stored immutably on every
// per-recipient record.
func RenderMessage(e *models.Event) string {
	actor := payloadString(e.Payload, "actor_name", "Someone")
	task := payloadString(e.Payload, "task_title", "a task")
	project := payloadString(e.Payload, "project_name", "a project")

	switch e.Kind {
	case models.KindComment:
		return fmt.Sprintf("%s commented on %q", actor, task)
	case models.KindReply:
		return fmt.Sprintf("%s replied to a comment on %q", actor, task)
	case models.KindAssignment:
		if assignee, ok := e.Payload["assignee_name"].(string); ok && assignee != "" {
			return fmt.Sprintf("%s assigned %s to %q", actor, assignee, task)
		}
		return fmt.Sprintf("%s updated the assignees of %q", actor, task)
	case models.KindDueDate:
		if due, ok := e.Payload["due_date"].(string); ok && due != "" {
			return fmt.Sprintf("%s changed the due date of %q to %s", actor, task, due)
		}
		return fmt.Sprintf("%s changed the due date of %q", actor, task)
	case models.KindPriority:
		if priority, ok := e.Payload["priority"].(string); ok && priority != "" {
			return fmt.Sprintf("%s set the priority of %q to %s", actor, task, priority)
		}
		return fmt.Sprintf("%s changed the priority of %q", actor, task)
	case models.KindProjectInvite:
		if invitee, ok := e.Payload["invitee_name"].(string); ok && invitee != "" {
			return fmt.Sprintf("%s invited %s to %q", actor, invitee, project)
		}
		return fmt.Sprintf("%s sent an invitation to %q", actor, project)
	case models.KindProjectCompleted:
		return fmt.Sprintf("%s marked the project %q as completed", actor, project)
	default:
		return fmt.Sprintf("%s sent you a notification", actor)
	}
}

func payloadString(payload models.JSONMap, key, fallback string) string {
	if payload == nil {
		return fallback
	}
	if value, ok := payload[key].(string); ok && value != "" {
		return value
	}
	return fallback
}
