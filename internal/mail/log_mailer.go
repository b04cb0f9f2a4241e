package mail

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogMailer writes messages to the log instead of sending them.
// Bodies are logged at debug level only.
type LogMailer struct {
	log *logrus.Logger
}

func NewLogMailer(log *logrus.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return ErrNoRecipient
	}

	entry := m.log.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	})
	entry.Info("mail: message accepted by log mailer")
	entry.WithField("body", msg.TextBody).Debug("mail: message body")

	return nil
}
