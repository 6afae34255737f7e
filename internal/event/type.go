package event

import "notification-service/internal/models"

const (
	// NotificationEventsQueue carries domain events from the tracker's CRUD
	// services. One message per business write.
	NotificationEventsQueue = "notification_events"
	// NotificationEventsDLQ receives events that kept failing fan-out.
	NotificationEventsDLQ = "notification_events.dlq"
)

// knownKinds guards against producers shipping kinds this consumer does
// not understand yet.
var knownKinds = map[models.NotificationKind]struct{}{
	models.KindComment:          {},
	models.KindReply:            {},
	models.KindAssignment:       {},
	models.KindDueDate:          {},
	models.KindPriority:         {},
	models.KindProjectInvite:    {},
	models.KindProjectCompleted: {},
}

// KnownKind reports whether the event kind is supported.
func KnownKind(kind models.NotificationKind) bool {
	_, ok := knownKinds[kind]
	return ok
}
