package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends audit events to AuditQueueName. It dials per publish;
// audit traffic is low and this keeps no connection state to recover.
type Publisher struct {
	url string
	log *zap.Logger
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log}
}

// Publish sends ev as a persistent JSON message. Errors are logged and
// returned; callers treat them as non-fatal.
func (p *Publisher) Publish(ctx context.Context, ev AuditEvent) error {
	if err := p.publish(ctx, ev); err != nil {
		p.log.Warn("audit publish failed", zap.String("action", ev.Action), zap.Int64("audit_id", ev.ID), zap.Error(err))
		return err
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, ev AuditEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	cfg := amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)}
	conn, err := amqp.DialConfig(p.url, cfg)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := declareQueue(ch); err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",             // default exchange
		AuditQueueName, // routing key = queue name
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
}

func declareQueue(ch *amqp.Channel) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		AuditQueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return q, fmt.Errorf("queue declare: %w", err)
	}
	return q, nil
}
