package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"notification-service/internal/models"
	"notification-service/internal/repository"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Resolver computes the recipient set for a domain event.
type Resolver interface {
	Resolve(ctx context.Context, event *models.Event) ([]string, error)
}

// requeuePublisher is the slice of the AMQP channel the retry path uses.
type requeuePublisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueConsumer consumes domain events from the bus and fans each one out
// into per-recipient delivery jobs on the durable queue.
type QueueConsumer struct {
	conn            *RabbitMQConnection
	publisher       requeuePublisher
	resolver        Resolver
	jobRepo         repository.JobRepository
	queueName       string
	deadLetterQueue string
}

type ConsumerConfig struct {
	QueueName       string
	DeadLetterQueue string
	PrefetchCount   int
}

func NewQueueConsumer(conn *RabbitMQConnection, cfg *ConsumerConfig, resolver Resolver, jobRepo repository.JobRepository) (*QueueConsumer, error) {
	// Set QoS for controlled processing
	err := conn.Channel.Qos(
		cfg.PrefetchCount, // prefetch count
		0,                 // prefetch size
		false,             // global
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set QoS: %v", err)
	}

	_, err = conn.Channel.QueueDeclare(
		cfg.QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %v", err)
	}

	// Declare dead letter queue
	_, err = conn.Channel.QueueDeclare(
		cfg.DeadLetterQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare DLQ: %v", err)
	}

	return &QueueConsumer{
		conn:            conn,
		publisher:       conn.Channel,
		resolver:        resolver,
		jobRepo:         jobRepo,
		queueName:       cfg.QueueName,
		deadLetterQueue: cfg.DeadLetterQueue,
	}, nil
}

func (q *QueueConsumer) StartConsuming(ctx context.Context) error {
	msgs, err := q.conn.Channel.Consume(
		q.queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %v", err)
	}

	return q.consumeLoop(ctx, msgs)
}

func (q *QueueConsumer) consumeLoop(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			if err := q.processMessage(ctx, msg); err != nil {
				slog.Error("error processing event", "error", err)
				q.retryOrDeadLetter(msg)
			} else {
				msg.Ack(false)
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// retryOrDeadLetter requeues a failed event with backoff, or nacks it to
// the DLQ once the retry budget is spent. The original is only acked after
// the requeued copy is confirmed published; otherwise it stays on the
// queue.
func (q *QueueConsumer) retryOrDeadLetter(msg amqp.Delivery) {
	retryCount := 0
	if val, ok := msg.Headers["x-retry-count"].(int32); ok {
		retryCount = int(val)
	}

	if retryCount >= 3 {
		msg.Nack(false, false)
		slog.Warn("event sent to DLQ", "retries", retryCount)
		return
	}

	if err := q.requeueMessage(msg, retryCount+1); err != nil {
		slog.Error("failed to requeue event, returning original to queue", "error", err)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}

// processMessage resolves an event's recipients and enqueues one delivery
// job per recipient. An event with zero eligible recipients is not an
// error; it simply produces no jobs.
func (q *QueueConsumer) processMessage(ctx context.Context, msg amqp.Delivery) error {
	var domainEvent models.Event
	if err := json.Unmarshal(msg.Body, &domainEvent); err != nil {
		return fmt.Errorf("failed to unmarshal event: %v", err)
	}

	if !KnownKind(domainEvent.Kind) {
		return fmt.Errorf("unsupported event kind: %s", domainEvent.Kind)
	}

	recipients, err := q.resolver.Resolve(ctx, &domainEvent)
	if err != nil {
		return fmt.Errorf("failed to resolve recipients: %w", err)
	}
	if len(recipients) == 0 {
		slog.Info("event produced no recipients", "event_id", domainEvent.ID, "kind", domainEvent.Kind)
		return nil
	}

	message := RenderMessage(&domainEvent)

	enqueued := 0
	for _, recipientID := range recipients {
		request := models.DeliveryRequest{
			RecipientID:      recipientID,
			Kind:             domainEvent.Kind,
			RelatedTaskID:    domainEvent.TaskID,
			RelatedProjectID: domainEvent.ProjectID,
			Message:          message,
			Payload:          domainEvent.Payload,
		}

		// Losing one recipient's notification is preferred over blocking the
		// rest of the fan-out, but the failure has to be observable.
		if _, err := q.jobRepo.Enqueue(ctx, models.JobKindNotification, request); err != nil {
			slog.Error("failed to enqueue delivery job", "event_id", domainEvent.ID, "recipient_id", recipientID, "error", err)
			continue
		}
		enqueued++
	}

	slog.Info("event fanned out", "event_id", domainEvent.ID, "kind", domainEvent.Kind, "recipients", len(recipients), "enqueued", enqueued)
	return nil
}

func (q *QueueConsumer) requeueMessage(msg amqp.Delivery, retryCount int) error {
	// Add retry count to headers
	headers := msg.Headers
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["x-retry-count"] = int32(retryCount)

	// Calculate backoff delay
	delay := time.Duration(retryCount*retryCount) * time.Second

	// Publish with delay
	return q.publisher.Publish(
		"",          // exchange
		q.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msg.Body,
			Headers:     headers,
			Expiration:  fmt.Sprintf("%d", delay.Milliseconds()),
		},
	)
}

func (q *QueueConsumer) Close() error {
	return q.conn.Close()
}
