// Package notify delivers rendered automation messages. Transports are
// narrow collaborators: a Sender reports whether the provider accepted the
// message and under which provider message id.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
)

// ErrNoTransport is returned by Router for channels without a sender.
var ErrNoTransport = errors.New("notify: no transport for channel")

// Message is one outbound notification.
type Message struct {
	Channel  persistence.Channel `json:"channel"`
	To       string              `json:"to"`
	Subject  string              `json:"subject,omitempty"`
	Text     string              `json:"text"`
	HTML     string              `json:"html,omitempty"`
	ThreadID string              `json:"threadId"`
}

// Result is the provider outcome of a send. A rejected message is reported
// with Success false and a reason in Error; a transport failure is returned
// as an error instead.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Sender dispatches a message over one transport.
type Sender interface {
	Send(ctx context.Context, message Message) (Result, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, message Message) (Result, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, message Message) (Result, error) {
	return f(ctx, message)
}

// Router dispatches by channel, mirroring separate email and SMS providers.
type Router struct {
	Email Sender
	SMS   Sender
}

// Send forwards message to the sender registered for its channel.
func (r Router) Send(ctx context.Context, message Message) (Result, error) {
	var sender Sender
	switch message.Channel {
	case persistence.ChannelEmail:
		sender = r.Email
	case persistence.ChannelSMS:
		sender = r.SMS
	}
	if sender == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrNoTransport, message.Channel)
	}
	return sender.Send(ctx, message)
}
