// Package queue publishes registration events to RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

// DefaultQueue receives one message per confirmed enrollment
const DefaultQueue = "enrollment.confirmed"

// EnrollmentConfirmed is the message body published after a successful
// payment
type EnrollmentConfirmed struct {
	UserID      models.ID `json:"user_id"`
	EventID     models.ID `json:"event_id"`
	EventSlug   string    `json:"event_slug"`
	EventTitle  string    `json:"event_title"`
	Amount      string    `json:"amount"`
	PriceTier   string    `json:"price_tier"`
	Reference   string    `json:"reference"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

func newEnrollmentConfirmed(o models.RegistrationOutcome) EnrollmentConfirmed {
	return EnrollmentConfirmed{
		UserID:      o.UserID,
		EventID:     o.EventID,
		EventSlug:   o.EventSlug,
		EventTitle:  o.EventTitle,
		Amount:      o.Amount.StringFixed(2),
		PriceTier:   string(o.Tier),
		Reference:   o.Reference,
		ConfirmedAt: o.CreatedAt.UTC(),
	}
}

// Publisher sends enrollment events to a durable queue. Each publish opens
// its own connection, so a broker outage never outlives one call.
type Publisher struct {
	url    string
	queue  string
	logger *slog.Logger
}

// NewPublisher creates a publisher for the broker at url
func NewPublisher(url, queue string, logger *slog.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{url: url, queue: queue, logger: logger}
}

// PublishEnrollment publishes a persistent EnrollmentConfirmed message
func (p *Publisher) PublishEnrollment(ctx context.Context, outcome models.RegistrationOutcome) error {
	body, err := json.Marshal(newEnrollmentConfirmed(outcome))
	if err != nil {
		return fmt.Errorf("failed to marshal enrollment event: %w", err)
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      dialContext(ctx),
	})
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(
		p.queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", p.queue, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	// default exchange, routing key is the queue name
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.queue, err)
	}

	p.logger.Debug("enrollment event published",
		"queue", p.queue,
		"user_id", outcome.UserID,
		"event_id", outcome.EventID,
	)
	return nil
}

// dialContext dials the broker under ctx. The context deadline also bounds
// the AMQP handshake; the client clears it once the connection is open.
func dialContext(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if deadline, ok := ctx.Deadline(); ok {
			if err := conn.SetDeadline(deadline); err != nil {
				conn.Close()
				return nil, err
			}
		}
		return conn, nil
	}
}
