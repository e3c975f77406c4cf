package users

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-accounts/atlas-accounts/internal/platform/db"
	"github.com/atlas-accounts/atlas-accounts/internal/shared"
	_ "github.com/atlas-accounts/atlas-accounts/testing"
)

// Integration tests against a real database. Set ATLAS_TEST_PG_DSN to run.
func testRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("ATLAS_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("ATLAS_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.New(ctx, dsn, db.PoolOptions{MinConns: 1, MaxConns: 4})
	require.NoError(t, err)
	require.NoError(t, db.EnsureSchema(ctx, pool))
	t.Cleanup(pool.Close)
	return NewRepository(pool)
}

func createTestUser(t *testing.T, repo *Repository) *User {
	t.Helper()
	ctx := context.Background()
	email := fmt.Sprintf("%s@example.com", uuid.NewString())
	user, err := repo.CreateUser(ctx, email, "Str0ngPass1")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = repo.pool.Exec(context.Background(), `DELETE FROM users WHERE user_id = $1`, user.ID)
	})
	return user
}

func TestRepositoryCreateAndLookupUser(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	user := createTestUser(t, repo)
	assert.Equal(t, StatusPending, user.Status)

	found, err := repo.FindUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
	assert.NotEqual(t, "Str0ngPass1", found.PasswordHash)

	got, err := repo.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	byID, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)
}

func TestRepositoryMissingUser(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	absent, err := repo.FindUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, absent)

	_, err = repo.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, shared.ErrUserNotFound)

	_, err = repo.GetUserByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
}

func TestRepositoryDuplicateEmail(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	user := createTestUser(t, repo)
	_, err := repo.CreateUser(ctx, user.Email, "An0therPass")
	assert.ErrorIs(t, err, shared.ErrEmailExists)
}

func TestRepositoryUpdateUserStatus(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	user := createTestUser(t, repo)
	activatedAt := time.Now().UTC().Truncate(time.Microsecond)
	updated, err := repo.UpdateUserStatus(ctx, user.ID, StatusActive, &activatedAt)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, updated.Status)
	require.NotNil(t, updated.ActivatedAt)
	assert.WithinDuration(t, activatedAt, *updated.ActivatedAt, time.Second)

	_, err = repo.UpdateUserStatus(ctx, uuid.New(), StatusActive, &activatedAt)
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
}

func TestRepositoryActivationCodeLifecycle(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user := createTestUser(t, repo)

	absent, err := repo.GetActivationCode(ctx, user.ID, "0000")
	require.NoError(t, err)
	assert.Nil(t, absent)

	first := ActivationCode{
		UserID:    user.ID,
		Code:      "1111",
		ExpiresAt: now.Add(CodeTTL),
		CreatedAt: now,
	}
	require.NoError(t, repo.CreateActivationCode(ctx, first))

	stored, err := repo.GetActivationCode(ctx, user.ID, "1111")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsUsed)

	// Inserting a replacement invalidates the previous code in the same
	// transaction.
	second := ActivationCode{
		UserID:    user.ID,
		Code:      "2222",
		ExpiresAt: now.Add(CodeTTL),
		CreatedAt: now,
	}
	require.NoError(t, repo.CreateActivationCode(ctx, second))

	stored, err = repo.GetActivationCode(ctx, user.ID, "1111")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsUsed)

	stored, err = repo.GetActivationCode(ctx, user.ID, "2222")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsUsed)
}

func TestRepositoryMarkAndInvalidateCodes(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user := createTestUser(t, repo)
	code := ActivationCode{
		UserID:    user.ID,
		Code:      "3333",
		ExpiresAt: now.Add(CodeTTL),
		CreatedAt: now,
	}
	require.NoError(t, repo.CreateActivationCode(ctx, code))

	require.NoError(t, repo.MarkCodeUsed(ctx, user.ID, "3333"))
	stored, err := repo.GetActivationCode(ctx, user.ID, "3333")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsUsed)
	assert.NotNil(t, stored.UsedAt)

	other := createTestUser(t, repo)
	require.NoError(t, repo.CreateActivationCode(ctx, ActivationCode{
		UserID:    other.ID,
		Code:      "4444",
		ExpiresAt: now.Add(CodeTTL),
		CreatedAt: now,
	}))
	require.NoError(t, repo.InvalidateUserCodes(ctx, other.ID))
	stored, err = repo.GetActivationCode(ctx, other.ID, "4444")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsUsed)
}

func TestRepositoryActivateUserConsumesCode(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user := createTestUser(t, repo)
	require.NoError(t, repo.CreateActivationCode(ctx, ActivationCode{
		UserID:    user.ID,
		Code:      "5555",
		ExpiresAt: now.Add(CodeTTL),
		CreatedAt: now,
	}))

	activated, err := repo.ActivateUser(ctx, user.ID, "5555", now)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, activated.Status)
	assert.NotNil(t, activated.ActivatedAt)

	stored, err := repo.GetActivationCode(ctx, user.ID, "5555")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsUsed)

	_, err = repo.ActivateUser(ctx, uuid.New(), "5555", now)
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
}

func TestRepositorySweepExpiredCodes(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user := createTestUser(t, repo)
	require.NoError(t, repo.CreateActivationCode(ctx, ActivationCode{
		UserID:    user.ID,
		Code:      "6666",
		ExpiresAt: now.Add(-time.Second),
		CreatedAt: now.Add(-CodeTTL - time.Second),
	}))

	removed, err := repo.SweepExpiredCodes(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, int64(1))

	stored, err := repo.GetActivationCode(ctx, user.ID, "6666")
	require.NoError(t, err)
	assert.Nil(t, stored)
}
