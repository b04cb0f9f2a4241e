// Package mail delivers notification emails. The rest of the service
// depends only on the Mailer interface; SMTP and log-only senders are
// selected by configuration.
package mail

import (
	"context"
	"errors"
)

var (
	// ErrNoRecipient is returned when Message.To is empty.
	ErrNoRecipient = errors.New("mail: no recipient")
	// ErrNoSender is returned when neither the message nor the mailer names a sender.
	ErrNoSender = errors.New("mail: no sender")
)

// Message is a single email. At least one of TextBody and HTMLBody should be set.
type Message struct {
	From     string
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer sends one message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
