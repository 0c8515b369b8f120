package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"adstudio-server/internal/models"
)

// JobUpdateEvent is the message fanned out on every observed job change.
// Downstream consumers (analytics, render post-processing) subscribe to the
// queue; connected clients get the same payload over the websocket.
type JobUpdateEvent struct {
	SessionID string                `json:"sessionId"`
	Job       *models.GenerationJob `json:"job"`
	Timestamp time.Time             `json:"timestamp"`
}

// JobEventPublisher publishes job update events.
type JobEventPublisher interface {
	PublishJobUpdate(ctx context.Context, event JobUpdateEvent) error
	Close() error
}

type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQJobEventPublisher opens a channel on the connection and declares
// the durable job updates queue. Queue parameters must match the consumer's.
func NewRabbitMQJobEventPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (JobEventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("job event publisher: failed to open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("job event publisher: failed to declare queue '%s': %w", queueName, err)
	}
	logger.Info("Job event publisher initialized", zap.String("queue", queueName))
	return &rabbitMQPublisher{channel: ch, queueName: queueName, logger: logger.Named("JobEventPublisher")}, nil
}

// PublishJobUpdate publishes one job update event.
func (p *rabbitMQPublisher) PublishJobUpdate(ctx context.Context, event JobUpdateEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal job update event: %w", err)
	}
	if err := p.publishMessage(ctx, body); err != nil {
		p.logger.Error("Failed to publish job update",
			zap.String("job_id", event.Job.ID), zap.Error(err))
		return err
	}
	return nil
}

// Close closes the underlying channel.
func (p *rabbitMQPublisher) Close() error {
	if p.channel == nil {
		return nil
	}
	return p.channel.Close()
}

// publishMessage publishes the body to the default exchange with the queue
// name as routing key, retrying up to 3 times with linear backoff.
func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		return errors.New("rabbitmq channel is not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (default)
			p.queueName, // routing key
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "adstudio-server",
			},
		)
		if err == nil {
			return nil
		}
		p.logger.Warn("Publish attempt failed",
			zap.Int("attempt", attempt),
			zap.String("queue", p.queueName),
			zap.Error(err),
		)
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return fmt.Errorf("failed to publish to queue %s after retries: %w", p.queueName, err)
}
