package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/identity-service/internal/mail"
)

// StartOTPConsumer consumes OTPQueueName and delivers each code through n.
// Broker failures trigger an exponential backoff reconnect; the function
// returns only when ctx is cancelled.
func StartOTPConsumer(ctx context.Context, url string, n mail.Notifier, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "queue.consumer"))

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	op := func() error {
		conn, err := amqp.Dial(url)
		if err != nil {
			return fmt.Errorf("dial broker: %w", err)
		}
		defer func() { _ = conn.Close() }()
		bo.Reset()
		log.Info("otp consumer connected")
		return consumeLoop(ctx, conn, n, log)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("otp consumer disconnected, retrying", zap.Error(err), zap.Duration("wait", wait))
	}
	err := backoff.RetryNotify(func() error {
		err := op()
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(bo, ctx), notify)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, n mail.Notifier, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		log.Warn("set QoS failed", zap.Error(err))
	}
	if err := declareOTPQueue(ch); err != nil {
		return err
	}
	msgs, err := ch.Consume(OTPQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(ctx, d.Body, n); err != nil {
				log.Error("otp message failed", zap.Error(err))
				// Not requeued; a poison message would loop forever.
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(ctx context.Context, body []byte, n mail.Notifier) error {
	var ev OTPRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Email == "" || ev.Code == "" {
		return errors.New("event without email or code")
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return n.SendOTP(ctx, ev.Email, ev.FullName, ev.Code)
}
