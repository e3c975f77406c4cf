package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-accounts/atlas-accounts/internal/platform/db"
	"github.com/atlas-accounts/atlas-accounts/internal/shared"
)

// uniqueViolation is the Postgres error code raised by the users_email key.
const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for users and their
// activation codes.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `user_id, email, password_hash, status, created_at, updated_at, activated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt, &u.ActivatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser hashes the password and inserts a new PENDING user. Email
// uniqueness is enforced by the database constraint, so a concurrent
// registration race surfaces as the same duplicate error.
func (r *Repository) CreateUser(ctx context.Context, email, password string) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, shared.ErrUnexpected.WithCause(err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	const query = `
INSERT INTO users (user_id, email, password_hash, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.Status, user.CreatedAt, user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, shared.ErrEmailExists
		}
		return nil, shared.ErrStorageUnavailable.WithCause(fmt.Errorf("users: create user: %w", err))
	}
	return user, nil
}

// GetUserByEmail fetches a user, signalling when it is missing.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	user, err := r.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, shared.ErrUserNotFound
	}
	return user, nil
}

// FindUserByEmail fetches a user, returning (nil, nil) when absent.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, shared.ErrStorageUnavailable.WithCause(fmt.Errorf("users: find by email: %w", err))
	}
	return user, nil
}

// GetUserByID fetches a user by id.
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrUserNotFound
		}
		return nil, shared.ErrStorageUnavailable.WithCause(fmt.Errorf("users: find by id: %w", err))
	}
	return user, nil
}

// UpdateUserStatus transitions the user and returns the refreshed row.
func (r *Repository) UpdateUserStatus(ctx context.Context, id uuid.UUID, status Status, activatedAt *time.Time) (*User, error) {
	const query = `
UPDATE users SET status = $2, updated_at = $3, activated_at = $4
WHERE user_id = $1
RETURNING ` + userColumns
	user, err := scanUser(r.pool.QueryRow(ctx, query, id, status, time.Now().UTC(), activatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrUserNotFound
		}
		return nil, shared.ErrStorageUnavailable.WithCause(fmt.Errorf("users: update status: %w", err))
	}
	return user, nil
}

// ActivateUser flips the user to ACTIVE and consumes the code in a single
// transaction, so a crash between the two writes cannot leave an activated
// user with a still-live code.
func (r *Repository) ActivateUser(ctx context.Context, userID uuid.UUID, code string, now time.Time) (*User, error) {
	var user *User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const updateUser = `
UPDATE users SET status = $2, updated_at = $3, activated_at = $3
WHERE user_id = $1
RETURNING ` + userColumns
		u, err := scanUser(tx.QueryRow(ctx, updateUser, userID, StatusActive, now))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrUserNotFound
			}
			return fmt.Errorf("users: activate: %w", err)
		}
		const consumeCode = `
UPDATE activation_codes SET is_used = TRUE, used_at = $3
WHERE user_id = $1 AND code = $2`
		if _, err := tx.Exec(ctx, consumeCode, userID, code, now); err != nil {
			return fmt.Errorf("users: consume code: %w", err)
		}
		user = u
		return nil
	})
	if err != nil {
		var se *shared.ServiceError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, shared.ErrStorageUnavailable.WithCause(err)
	}
	return user, nil
}

// CreateActivationCode invalidates all live codes for the user and inserts
// the new one. Running both statements in one transaction keeps the
// single-active-code policy strict under concurrent resends.
func (r *Repository) CreateActivationCode(ctx context.Context, code ActivationCode) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const invalidate = `
UPDATE activation_codes SET is_used = TRUE, used_at = $2
WHERE user_id = $1 AND is_used = FALSE`
		if _, err := tx.Exec(ctx, invalidate, code.UserID, code.CreatedAt); err != nil {
			return fmt.Errorf("users: invalidate codes: %w", err)
		}
		const insert = `
INSERT INTO activation_codes (user_id, code, expires_at, created_at, is_used)
VALUES ($1, $2, $3, $4, FALSE)`
		if _, err := tx.Exec(ctx, insert, code.UserID, code.Code, code.ExpiresAt, code.CreatedAt); err != nil {
			return fmt.Errorf("users: insert code: %w", err)
		}
		return nil
	})
	if err != nil {
		return shared.ErrStorageUnavailable.WithCause(err)
	}
	return nil
}

// GetActivationCode fetches the (user, code) pair, returning (nil, nil)
// when no such code exists.
func (r *Repository) GetActivationCode(ctx context.Context, userID uuid.UUID, code string) (*ActivationCode, error) {
	const query = `
SELECT user_id, code, expires_at, created_at, used_at, is_used
FROM activation_codes
WHERE user_id = $1 AND code = $2`
	var c ActivationCode
	err := r.pool.QueryRow(ctx, query, userID, code).
		Scan(&c.UserID, &c.Code, &c.ExpiresAt, &c.CreatedAt, &c.UsedAt, &c.IsUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, shared.ErrStorageUnavailable.WithCause(fmt.Errorf("users: get code: %w", err))
	}
	return &c, nil
}

// MarkCodeUsed flips a single code to used.
func (r *Repository) MarkCodeUsed(ctx context.Context, userID uuid.UUID, code string) error {
	const query = `
UPDATE activation_codes SET is_used = TRUE, used_at = $3
WHERE user_id = $1 AND code = $2`
	if _, err := r.pool.Exec(ctx, query, userID, code, time.Now().UTC()); err != nil {
		return shared.ErrStorageUnavailable.WithCause(fmt.Errorf("users: mark code used: %w", err))
	}
	return nil
}

// InvalidateUserCodes flips every live code of the user to used.
func (r *Repository) InvalidateUserCodes(ctx context.Context, userID uuid.UUID) error {
	const query = `
UPDATE activation_codes SET is_used = TRUE, used_at = $2
WHERE user_id = $1 AND is_used = FALSE`
	if _, err := r.pool.Exec(ctx, query, userID, time.Now().UTC()); err != nil {
		return shared.ErrStorageUnavailable.WithCause(fmt.Errorf("users: invalidate codes: %w", err))
	}
	return nil
}

// SweepExpiredCodes deletes every expired or used code row and reports how
// many were removed. Safe to run repeatedly.
func (r *Repository) SweepExpiredCodes(ctx context.Context) (int64, error) {
	const query = `DELETE FROM activation_codes WHERE expires_at < now() OR is_used = TRUE`
	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, shared.ErrStorageUnavailable.WithCause(fmt.Errorf("users: sweep codes: %w", err))
	}
	return tag.RowsAffected(), nil
}
