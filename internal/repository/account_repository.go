package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/abhishek00112233/LMS-Backend/internal/models"
	"github.com/abhishek00112233/LMS-Backend/internal/repository/common"
)

// accountRow is the flat database shape of models.Account.
type accountRow struct {
	ID           uuid.UUID      `db:"id"`
	Email        string         `db:"email"`
	Role         string         `db:"role"`
	Name         string         `db:"name"`
	PasswordHash string         `db:"password_hash"`
	Verified     bool           `db:"verified"`
	OTPHash      sql.NullString `db:"otp_hash"`
	OTPExpiresAt sql.NullTime   `db:"otp_expires_at"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r accountRow) toModel() *models.Account {
	acc := &models.Account{
		ID:           r.ID,
		Role:         models.Role(r.Role),
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}

	switch {
	case r.Verified:
		acc.State = models.Verified{}
	case r.OTPHash.Valid && r.OTPExpiresAt.Valid:
		acc.State = models.Unverified{OTP: &models.PendingOTP{
			CodeHash:  r.OTPHash.String,
			ExpiresAt: r.OTPExpiresAt.Time,
		}}
	default:
		acc.State = models.Unverified{}
	}

	return acc
}

// pendingColumns flattens the pending code of acc into nullable columns.
func pendingColumns(acc *models.Account) (sql.NullString, sql.NullTime) {
	otp, ok := acc.PendingOTP()
	if !ok {
		return sql.NullString{}, sql.NullTime{}
	}
	return sql.NullString{String: otp.CodeHash, Valid: true}, sql.NullTime{Time: otp.ExpiresAt, Valid: true}
}

// AccountRepository stores accounts in the accounts table and queues
// their notifications in notification_outbox.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates the repository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByEmail returns the account registered under email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	row, err := common.GetByField[accountRow](ctx, r.db, "accounts", "email", email, ErrAccountNotFound)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("account repository: get by email %w", err)
	}

	return row.toModel(), nil
}

// GetByEmailAndRole returns the account matching both email and role.
func (r *AccountRepository) GetByEmailAndRole(ctx context.Context, email string, role models.Role) (*models.Account, error) {
	var row accountRow
	query := `
		SELECT id, email, role, name, password_hash, verified, otp_hash, otp_expires_at, created_at, updated_at
		FROM accounts
		WHERE email = $1 AND role = $2
	`
	if err := r.db.GetContext(ctx, &row, query, email, string(role)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("account repository: get by email and role %w", err)
	}

	return row.toModel(), nil
}

// SavePending creates the unverified account or overwrites the existing
// unverified one, and queues msg in the same transaction. Unsent messages
// for the same recipient carry a replaced code and are dropped. A verified
// account is never touched; ErrAccountVerified is returned instead.
func (r *AccountRepository) SavePending(ctx context.Context, acc *models.Account, msg *models.OutboxMessage) error {
	if acc.IsVerified() {
		return fmt.Errorf("account repository: save pending: %w", ErrAccountVerified)
	}
	otpHash, otpExpiresAt := pendingColumns(acc)

	upsert := `
		INSERT INTO accounts (id, email, role, name, password_hash, verified, otp_hash, otp_expires_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
		ON CONFLICT (email) DO UPDATE
		SET role = EXCLUDED.role,
			name = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash,
			otp_hash = EXCLUDED.otp_hash,
			otp_expires_at = EXCLUDED.otp_expires_at,
			updated_at = NOW()
		WHERE accounts.verified = FALSE
		RETURNING id, created_at, updated_at
	`

	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.QueryRowxContext(
			ctx, upsert,
			acc.ID, acc.Email, string(acc.Role), acc.Name, acc.PasswordHash, otpHash, otpExpiresAt,
		).Scan(&acc.ID, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAccountVerified
			}
			return fmt.Errorf("account repository: upsert pending %w", err)
		}

		if msg == nil {
			return nil
		}
		if err := dropUnsent(ctx, tx, msg.Recipient); err != nil {
			return fmt.Errorf("account repository: drop superseded notifications %w", err)
		}
		if err := insertOutbox(ctx, tx, msg); err != nil {
			return fmt.Errorf("account repository: queue notification %w", err)
		}
		return nil
	})
}

// MarkVerified flips the account to verified and clears its pending code,
// provided the account still holds codeHash. Otherwise ErrStateConflict.
func (r *AccountRepository) MarkVerified(ctx context.Context, id uuid.UUID, codeHash string) error {
	query := `
		UPDATE accounts
		SET verified = TRUE,
			otp_hash = NULL,
			otp_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND verified = FALSE AND otp_hash = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, codeHash)
	if err != nil {
		return fmt.Errorf("account repository: mark verified %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("account repository: mark verified rows %w", err)
	}
	if affected == 0 {
		return ErrStateConflict
	}

	return nil
}

// PingContext reports whether the database is reachable.
func (r *AccountRepository) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
