package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends OTPRequestedEvent messages.  It satisfies mail.Notifier,
// so the dispatcher can hand codes to the broker instead of SMTP.
type Publisher struct {
	url string
	log *zap.Logger
	now func() time.Time
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log.With(zap.String("component", "queue.publisher")), now: func() time.Time { return time.Now().UTC() }}
}

// SendOTP publishes one persistent message to OTPQueueName.  A connection
// is opened per message; activation mail volume is low.
func (p *Publisher) SendOTP(ctx context.Context, email, fullName, code string) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("rabbitmq dial failed", zap.Error(err))
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declareOTPQueue(ch); err != nil {
		return err
	}
	pub, err := newPublishing(OTPRequestedEvent{Email: email, FullName: fullName, Code: code, RequestedAt: p.now()})
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", OTPQueueName, false, false, pub); err != nil {
		p.log.Warn("rabbitmq publish failed", zap.Error(err))
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func declareOTPQueue(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(OTPQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}

func newPublishing(ev OTPRequestedEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.RequestedAt,
		Body:         body,
	}, nil
}
