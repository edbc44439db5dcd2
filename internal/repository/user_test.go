package repository

import (
	"context"
	"testing"

	"weebchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertByUid_CreatesLazily(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	user, err := repo.UpsertByUid(ctx, "uid-1", "weeb@example.com")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", user.Uid)
	assert.Equal(t, models.DefaultDisplayName, user.DisplayName)
	assert.False(t, user.IsBanned)
	assert.Zero(t, user.ViolationCount)

	// A second contact returns the same row, not a duplicate.
	again, err := repo.UpsertByUid(ctx, "uid-1", "weeb@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestUpsertByUid_RefreshesEmail(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.UpsertByUid(ctx, "uid-1", "old@example.com")
	require.NoError(t, err)

	user, err := repo.UpsertByUid(ctx, "uid-1", "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
}

func TestGetByUid_NotFound(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	_, err := repo.GetByUid(context.Background(), "missing")
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestSetDisplayName(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	// Works even for a user we have never seen: the row is created lazily.
	user, err := repo.SetDisplayName(ctx, "uid-1", "SakuraFan42")
	require.NoError(t, err)
	assert.Equal(t, "SakuraFan42", user.DisplayName)

	reloaded, err := repo.GetByUid(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "SakuraFan42", reloaded.DisplayName)
}

func TestIncrementViolation_BansAtThreshold(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.UpsertByUid(ctx, "uid-1", "")
	require.NoError(t, err)

	user, err := repo.IncrementViolation(ctx, "uid-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, user.ViolationCount)
	assert.False(t, user.IsBanned)

	user, err = repo.IncrementViolation(ctx, "uid-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, user.ViolationCount)
	assert.False(t, user.IsBanned)

	user, err = repo.IncrementViolation(ctx, "uid-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, user.ViolationCount)
	assert.True(t, user.IsBanned)

	// Further violations keep the ban and the counter moving.
	user, err = repo.IncrementViolation(ctx, "uid-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 4, user.ViolationCount)
	assert.True(t, user.IsBanned)
}

func TestIncrementViolation_UnknownUser(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	_, err := repo.IncrementViolation(context.Background(), "missing", 3)
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestIncrementReport_BansAtThreshold(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.UpsertByUid(ctx, "uid-1", "")
	require.NoError(t, err)

	var user *models.User
	var err2 error
	for i := 0; i < 9; i++ {
		user, err2 = repo.IncrementReport(ctx, "uid-1", 10)
		require.NoError(t, err2)
		assert.False(t, user.IsBanned)
	}

	user, err2 = repo.IncrementReport(ctx, "uid-1", 10)
	require.NoError(t, err2)
	assert.Equal(t, 10, user.ReportCount)
	assert.True(t, user.IsBanned)
}

func TestBan(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.UpsertByUid(ctx, "uid-1", "")
	require.NoError(t, err)

	require.NoError(t, repo.Ban(ctx, "uid-1"))

	user, err := repo.GetByUid(ctx, "uid-1")
	require.NoError(t, err)
	assert.True(t, user.IsBanned)
}
