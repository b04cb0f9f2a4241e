package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhishek00112233/LMS-Backend/internal/models"
)

func pendingAccount(email, codeHash string, expires time.Time) *models.Account {
	return &models.Account{
		ID:           uuid.New(),
		Role:         models.RoleStudent,
		Name:         "Ann",
		Email:        email,
		PasswordHash: "hash",
		State:        models.Unverified{OTP: &models.PendingOTP{CodeHash: codeHash, ExpiresAt: expires}},
	}
}

func outboxMessage(to string) *models.OutboxMessage {
	return &models.OutboxMessage{
		ID:            uuid.New(),
		Recipient:     to,
		Subject:       "subject",
		HTMLBody:      "<b>123456</b>",
		TextBody:      "123456",
		NextAttemptAt: time.Now().Add(-time.Second),
	}
}

func TestMemoryStore_SavePendingCreatesAndOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	expires := time.Now().Add(5 * time.Minute)

	first := pendingAccount("ann@x.com", "h1", expires)
	require.NoError(t, store.SavePending(ctx, first, outboxMessage("ann@x.com")))

	second := pendingAccount("ann@x.com", "h2", expires)
	second.Role = models.RoleInstructor
	second.Name = "Annie"
	latest := outboxMessage("ann@x.com")
	require.NoError(t, store.SavePending(ctx, second, latest))

	assert.Equal(t, first.ID, second.ID, "overwrite keeps the identity")

	got, err := store.GetByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Annie", got.Name)
	assert.Equal(t, models.RoleInstructor, got.Role)
	otp, ok := got.PendingOTP()
	require.True(t, ok)
	assert.Equal(t, "h2", otp.CodeHash)

	outbox := store.Outbox()
	require.Len(t, outbox, 1, "the unsent message for the replaced code is dropped")
	assert.Equal(t, latest.ID, outbox[0].ID)
}

func TestMemoryStore_SavePendingKeepsDeliveredAndOtherRecipients(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	expires := time.Now().Add(5 * time.Minute)

	delivered := outboxMessage("ann@x.com")
	require.NoError(t, store.SavePending(ctx, pendingAccount("ann@x.com", "h1", expires), delivered))
	require.NoError(t, store.MarkSent(ctx, delivered.ID, time.Now()))

	failed := outboxMessage("ann@x.com")
	require.NoError(t, store.SavePending(ctx, pendingAccount("ann@x.com", "h2", expires), failed))
	require.NoError(t, store.MarkFailed(ctx, failed.ID, "smtp down", time.Now()))

	bob := outboxMessage("bob@x.com")
	require.NoError(t, store.SavePending(ctx, pendingAccount("bob@x.com", "b1", expires), bob))

	latest := outboxMessage("ann@x.com")
	require.NoError(t, store.SavePending(ctx, pendingAccount("ann@x.com", "h3", expires), latest))

	ids := make([]uuid.UUID, 0)
	for _, m := range store.Outbox() {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{delivered.ID, bob.ID, latest.ID}, ids)
}

func TestMemoryStore_SavePendingRefusesVerified(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	acc := pendingAccount("ann@x.com", "h1", time.Now().Add(time.Minute))
	require.NoError(t, store.SavePending(ctx, acc, nil))
	require.NoError(t, store.MarkVerified(ctx, acc.ID, "h1"))

	err := store.SavePending(ctx, pendingAccount("ann@x.com", "h2", time.Now()), outboxMessage("ann@x.com"))
	assert.ErrorIs(t, err, ErrAccountVerified)
	assert.Empty(t, store.Outbox(), "no message is queued for a refused save")
}

func TestMemoryStore_GetByEmailAndRole(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SavePending(ctx, pendingAccount("ann@x.com", "h1", time.Now()), nil))

	_, err := store.GetByEmailAndRole(ctx, "ann@x.com", models.RoleStudent)
	assert.NoError(t, err)
	_, err = store.GetByEmailAndRole(ctx, "ann@x.com", models.RoleAdmin)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = store.GetByEmail(ctx, "bob@x.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SavePending(ctx, pendingAccount("ann@x.com", "h1", time.Now()), nil))

	got, err := store.GetByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	got.Name = "mutated"
	got.State = models.Verified{}

	again, err := store.GetByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Ann", again.Name)
	assert.False(t, again.IsVerified())
}

func TestMemoryStore_MarkVerifiedIsConditional(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	acc := pendingAccount("ann@x.com", "h1", time.Now())
	require.NoError(t, store.SavePending(ctx, acc, nil))

	assert.ErrorIs(t, store.MarkVerified(ctx, acc.ID, "other"), ErrStateConflict)
	assert.ErrorIs(t, store.MarkVerified(ctx, uuid.New(), "h1"), ErrStateConflict)

	require.NoError(t, store.MarkVerified(ctx, acc.ID, "h1"))
	assert.ErrorIs(t, store.MarkVerified(ctx, acc.ID, "h1"), ErrStateConflict)

	got, err := store.GetByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.True(t, got.IsVerified())
	_, pending := got.PendingOTP()
	assert.False(t, pending)
}

func TestMemoryStore_ConcurrentVerifyHasOneWinner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	acc := pendingAccount("ann@x.com", "h1", time.Now())
	require.NoError(t, store.SavePending(ctx, acc, nil))

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.MarkVerified(ctx, acc.ID, "h1") == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestMemoryStore_OutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	msg := outboxMessage("ann@x.com")
	require.NoError(t, store.SavePending(ctx, pendingAccount("ann@x.com", "h1", now), msg))

	due, err := store.FetchDue(ctx, now, 3, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, store.MarkFailed(ctx, msg.ID, "smtp down", now.Add(time.Minute)))
	due, err = store.FetchDue(ctx, now, 3, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "not due before the next attempt")

	due, err = store.FetchDue(ctx, now.Add(time.Minute), 3, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Attempts)
	require.NotNil(t, due[0].LastError)
	assert.Equal(t, "smtp down", *due[0].LastError)

	due, err = store.FetchDue(ctx, now.Add(time.Minute), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "exhausted messages are not fetched")

	require.NoError(t, store.MarkSent(ctx, msg.ID, now.Add(time.Minute)))
	all := store.Outbox()
	require.Len(t, all, 1)
	assert.NotNil(t, all[0].SentAt)
	assert.Empty(t, all[0].HTMLBody)
	assert.Empty(t, all[0].TextBody)

	due, err = store.FetchDue(ctx, now.Add(time.Hour), 3, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMemoryStore_FetchDueRespectsLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		require.NoError(t, store.SavePending(ctx, pendingAccount(email, "h", time.Now()), outboxMessage(email)))
	}

	due, err := store.FetchDue(ctx, time.Now(), 3, 2)
	require.NoError(t, err)
	assert.Len(t, due, 2)
}
