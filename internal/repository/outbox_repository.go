package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/abhishek00112233/LMS-Backend/internal/models"
)

// OutboxRepository reads and updates the notification_outbox table.
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository creates the repository.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func insertOutbox(ctx context.Context, tx *sqlx.Tx, msg *models.OutboxMessage) error {
	query := `
		INSERT INTO notification_outbox (id, recipient, subject, html_body, text_body, attempts, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)
		RETURNING created_at
	`
	return tx.QueryRowxContext(
		ctx, query,
		msg.ID, msg.Recipient, msg.Subject, msg.HTMLBody, msg.TextBody, msg.NextAttemptAt,
	).Scan(&msg.CreatedAt)
}

// dropUnsent deletes the queued, not yet delivered messages for recipient.
func dropUnsent(ctx context.Context, tx *sqlx.Tx, recipient string) error {
	query := `
		DELETE FROM notification_outbox
		WHERE recipient = $1 AND sent_at IS NULL
	`
	_, err := tx.ExecContext(ctx, query, recipient)
	return err
}

// FetchDue returns up to limit unsent messages whose next attempt is due at now
// and which have been tried fewer than maxAttempts times, oldest first.
func (r *OutboxRepository) FetchDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.OutboxMessage, error) {
	query := `
		SELECT id, recipient, subject, html_body, text_body, attempts, last_error, next_attempt_at, sent_at, created_at
		FROM notification_outbox
		WHERE sent_at IS NULL AND attempts < $1 AND next_attempt_at <= $2
		ORDER BY created_at
		LIMIT $3
	`

	var messages []models.OutboxMessage
	if err := r.db.SelectContext(ctx, &messages, query, maxAttempts, now, limit); err != nil {
		return nil, fmt.Errorf("outbox repository: fetch due %w", err)
	}

	return messages, nil
}

// MarkSent records delivery and drops the bodies, which carry the plaintext code.
func (r *OutboxRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE notification_outbox
		SET sent_at = $2,
			attempts = attempts + 1,
			last_error = NULL,
			html_body = '',
			text_body = ''
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("outbox repository: mark sent %w", err)
	}
	return nil
}

// MarkFailed counts a failed attempt and schedules the next one.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, next time.Time) error {
	query := `
		UPDATE notification_outbox
		SET attempts = attempts + 1,
			last_error = $2,
			next_attempt_at = $3
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, reason, next); err != nil {
		return fmt.Errorf("outbox repository: mark failed %w", err)
	}
	return nil
}
