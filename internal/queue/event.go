// Package queue carries activation-mail requests over RabbitMQ.
package queue

import "time"

// OTPQueueName is the durable queue activation requests are published to.
const OTPQueueName = "auth.otp.requested"

// OTPRequestedEvent asks a mail worker to deliver an activation code.
type OTPRequestedEvent struct {
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	Code        string    `json:"code"`
	RequestedAt time.Time `json:"requested_at"`
}
