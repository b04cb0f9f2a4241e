package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/abhishek00112233/LMS-Backend/internal/logger"
	"github.com/abhishek00112233/LMS-Backend/internal/mail"
	"github.com/abhishek00112233/LMS-Backend/internal/models"
	"github.com/abhishek00112233/LMS-Backend/internal/pkg/clock"
)

const (
	firstRedeliveryDelay = 30 * time.Second
	maxRedeliveryDelay   = 10 * time.Minute
)

// OutboxRepository is the queue of notifications awaiting delivery.
type OutboxRepository interface {
	FetchDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.OutboxMessage, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, next time.Time) error
}

// NotificationConfig tunes the dispatcher.
type NotificationConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxAttempts bounds how many dispatch rounds a message gets before it is abandoned.
	MaxAttempts int
	// Retries is the number of immediate retries inside one round.
	Retries     uint64
	RetryBase   time.Duration
	RetryCap    time.Duration
	SendTimeout time.Duration
}

// DefaultNotificationConfig returns the production defaults.
func DefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		PollInterval: 2 * time.Second,
		BatchSize:    20,
		MaxAttempts:  5,
		Retries:      3,
		RetryBase:    200 * time.Millisecond,
		RetryCap:     5 * time.Second,
		SendTimeout:  30 * time.Second,
	}
}

// NotificationService drains the outbox through a Mailer.
type NotificationService struct {
	repo   OutboxRepository
	mailer mail.Mailer
	clock  clock.Clocker
	cfg    NotificationConfig
}

// NewNotificationService creates the dispatcher. Zero fields of cfg take their defaults.
func NewNotificationService(repo OutboxRepository, mailer mail.Mailer, c clock.Clocker, cfg NotificationConfig) *NotificationService {
	def := DefaultNotificationConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = def.RetryCap
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if c == nil {
		c = clock.New()
	}

	return &NotificationService{repo: repo, mailer: mailer, clock: c, cfg: cfg}
}

// Run dispatches pending messages every PollInterval until ctx is done.
func (s *NotificationService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	logger.Log.WithField("interval", s.cfg.PollInterval).Info("notification service: dispatcher started")
	for {
		if _, err := s.DispatchPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("notification service: dispatch failed")
		}

		select {
		case <-ctx.Done():
			logger.Log.Info("notification service: dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}

// DispatchPending sends one batch of due messages and returns how many were delivered.
// A failed message is rescheduled and does not stop the batch.
func (s *NotificationService) DispatchPending(ctx context.Context) (int, error) {
	due, err := s.repo.FetchDue(ctx, s.clock.Now(), s.cfg.MaxAttempts, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("notification service: fetch due: %w", err)
	}

	sent := 0
	for _, msg := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		entry := logger.Log.WithFields(logrus.Fields{
			"message_id": msg.ID,
			"recipient":  msg.Recipient,
			"attempt":    msg.Attempts + 1,
		})

		if sendErr := s.deliver(ctx, msg); sendErr != nil {
			next := s.clock.Now().Add(redeliveryDelay(msg.Attempts))
			if err := s.repo.MarkFailed(ctx, msg.ID, sendErr.Error(), next); err != nil {
				return sent, fmt.Errorf("notification service: mark failed: %w", err)
			}
			if msg.Attempts+1 >= s.cfg.MaxAttempts {
				entry.WithError(sendErr).Error("notification service: delivery abandoned")
			} else {
				entry.WithError(sendErr).WithField("next_attempt_at", next).Warn("notification service: delivery failed")
			}
			continue
		}

		if err := s.repo.MarkSent(ctx, msg.ID, s.clock.Now()); err != nil {
			return sent, fmt.Errorf("notification service: mark sent: %w", err)
		}
		entry.Info("notification service: delivered")
		sent++
	}

	return sent, nil
}

func (s *NotificationService) deliver(ctx context.Context, msg models.OutboxMessage) error {
	b := retry.NewExponential(s.cfg.RetryBase)
	b = retry.WithCappedDuration(s.cfg.RetryCap, b)
	b = retry.WithMaxRetries(s.cfg.Retries, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		defer cancel()

		err := s.mailer.Send(sendCtx, mail.Message{
			To:       msg.Recipient,
			Subject:  msg.Subject,
			HTMLBody: msg.HTMLBody,
			TextBody: msg.TextBody,
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, mail.ErrNoRecipient) || errors.Is(err, mail.ErrNoSender) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// redeliveryDelay doubles from 30s per failed round, capped at 10 minutes.
func redeliveryDelay(attempts int) time.Duration {
	d := firstRedeliveryDelay
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= maxRedeliveryDelay {
			return maxRedeliveryDelay
		}
	}
	return d
}
