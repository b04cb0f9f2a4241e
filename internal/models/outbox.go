package models

import (
	"time"

	"github.com/google/uuid"
)

// OutboxMessage is an email queued for asynchronous delivery.
type OutboxMessage struct {
	ID            uuid.UUID  `db:"id"`
	Recipient     string     `db:"recipient"`
	Subject       string     `db:"subject"`
	HTMLBody      string     `db:"html_body"`
	TextBody      string     `db:"text_body"`
	Attempts      int        `db:"attempts"`
	LastError     *string    `db:"last_error"`
	NextAttemptAt time.Time  `db:"next_attempt_at"`
	SentAt        *time.Time `db:"sent_at"`
	CreatedAt     time.Time  `db:"created_at"`
}
