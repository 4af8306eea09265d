// Package notify delivers outbound WhatsApp messages. Ledger mutations never
// send directly; they enqueue rows in the notifications outbox and the
// dispatcher drains it, so a delivery failure can never roll back a payment.
package notify

import "context"

// Outgoing is one message to deliver to a phone.
type Outgoing struct {
	ToPhone string
	Body    string
}

// Sender delivers a single message over the messaging channel.
type Sender interface {
	Send(ctx context.Context, out Outgoing) error
}
