package event

import (
	"context"
	"encoding/json"
	"fmt"
	"notification-service/internal/models"
	"notification-service/utils"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// publishChannel is the slice of the AMQP channel the producer side uses.
type publishChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// EventPublisher is the producer side of the pipeline: the single narrow
// interface the tracker's CRUD layer calls after a business write commits.
// Recipient resolution and delivery happen entirely on the consumer side.
type EventPublisher struct {
	channel           publishChannel
	messagesPublished int64
	messagesFailed    int64
	lastPublishTime   time.Time
}

// PublisherStats is a snapshot of the producer's delivery accounting.
type PublisherStats struct {
	Published     int64     `json:"published"`
	Failed        int64     `json:"failed"`
	LastPublishAt time.Time `json:"last_publish_at"`
}

// NewEventPublisher creates a new domain event publisher
func NewEventPublisher(conn *RabbitMQConnection) *EventPublisher {
	return &EventPublisher{
		channel:         conn.Channel,
		lastPublishTime: time.Now(),
	}
}

// PublishEvent publishes a domain event to the notification_events queue.
func (p *EventPublisher) PublishEvent(ctx context.Context, event models.Event) error {
	// Ensure the queue exists
	_, err := p.channel.QueueDeclare(
		NotificationEventsQueue, // queue name
		true,                    // durable
		false,                   // delete when unused
		false,                   // exclusive
		false,                   // no-wait
		nil,                     // arguments
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if event.ID == "" {
		event.ID = "E-" + utils.GenerateRandomStringWithLength(6)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// Marshal the event to JSON
	body, err := json.Marshal(event)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	// Publish the message
	err = p.channel.PublishWithContext(
		ctx,
		"",                      // exchange
		NotificationEventsQueue, // routing key (queue name)
		false,                   // mandatory
		false,                   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to publish notification event: %w", err)
	}

	p.messagesPublished++
	p.lastPublishTime = time.Now()
	return nil
}

// Stats reports how many events this publisher has shipped and dropped.
func (p *EventPublisher) Stats() PublisherStats {
	return PublisherStats{
		Published:     p.messagesPublished,
		Failed:        p.messagesFailed,
		LastPublishAt: p.lastPublishTime,
	}
}
