package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek00112233/LMS-Backend/internal/models"
)

// MemoryStore keeps accounts and queued notifications in process memory.
// It mirrors the Postgres repositories, including the conditional verify,
// and is used for STORE_DRIVER=memory and in tests.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	outbox   []*models.OutboxMessage
	now      func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*models.Account),
		now:      time.Now,
	}
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[email]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (s *MemoryStore) GetByEmailAndRole(_ context.Context, email string, role models.Role) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[email]
	if !ok || acc.Role != role {
		return nil, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (s *MemoryStore) SavePending(ctx context.Context, acc *models.Account, msg *models.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if acc.IsVerified() {
		return ErrAccountVerified
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.accounts[acc.Email]; ok {
		if existing.IsVerified() {
			return ErrAccountVerified
		}
		acc.ID = existing.ID
		acc.CreatedAt = existing.CreatedAt
	} else {
		if acc.ID == uuid.Nil {
			acc.ID = uuid.New()
		}
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now
	s.accounts[acc.Email] = acc.Clone()

	if msg != nil {
		kept := s.outbox[:0]
		for _, m := range s.outbox {
			if m.SentAt == nil && m.Recipient == msg.Recipient {
				continue
			}
			kept = append(kept, m)
		}
		s.outbox = kept

		msg.CreatedAt = now
		cp := *msg
		s.outbox = append(s.outbox, &cp)
	}

	return nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, id uuid.UUID, codeHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.ID != id {
			continue
		}
		otp, ok := acc.PendingOTP()
		if !ok || otp.CodeHash != codeHash {
			return ErrStateConflict
		}
		acc.State = models.Verified{}
		acc.UpdatedAt = s.now()
		return nil
	}

	return ErrStateConflict
}

func (s *MemoryStore) FetchDue(_ context.Context, now time.Time, maxAttempts, limit int) ([]models.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]models.OutboxMessage, 0)
	for _, msg := range s.outbox {
		if msg.SentAt != nil || msg.Attempts >= maxAttempts || msg.NextAttemptAt.After(now) {
			continue
		}
		due = append(due, *msg)
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg := s.findMessage(id); msg != nil {
		sentAt := at
		msg.SentAt = &sentAt
		msg.Attempts++
		msg.LastError = nil
		msg.HTMLBody = ""
		msg.TextBody = ""
	}
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id uuid.UUID, reason string, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg := s.findMessage(id); msg != nil {
		lastErr := reason
		msg.Attempts++
		msg.LastError = &lastErr
		msg.NextAttemptAt = next
	}
	return nil
}

// Outbox returns a snapshot of every queued message.
func (s *MemoryStore) Outbox() []models.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.OutboxMessage, 0, len(s.outbox))
	for _, msg := range s.outbox {
		out = append(out, *msg)
	}
	return out
}

// PingContext always succeeds.
func (s *MemoryStore) PingContext(context.Context) error {
	return nil
}

func (s *MemoryStore) findMessage(id uuid.UUID) *models.OutboxMessage {
	for _, msg := range s.outbox {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}
