package mail

import (
	"context"
	"fmt"
	"time"
)

// Notifier delivers an activation code to a user.
type Notifier interface {
	SendOTP(ctx context.Context, email, fullName, code string) error
}

// DirectNotifier renders the activation template and sends it right away.
type DirectNotifier struct {
	sender  Sender
	appName string
	ttl     time.Duration
}

func NewDirectNotifier(sender Sender, appName string, ttl time.Duration) *DirectNotifier {
	return &DirectNotifier{sender: sender, appName: appName, ttl: ttl}
}

func (n *DirectNotifier) SendOTP(ctx context.Context, email, fullName, code string) error {
	subject, body, err := RenderOTP(n.appName, fullName, code, n.ttl)
	if err != nil {
		return fmt.Errorf("render otp mail: %w", err)
	}
	return n.sender.Send(ctx, email, subject, body)
}
