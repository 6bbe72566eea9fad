package repository

import (
	"context"
	"testing"

	"platefeed/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestUser(t *testing.T, repo UserRepository) *models.User {
	t.Helper()
	u := &models.User{
		Username: gofakeit.Username() + gofakeit.DigitN(6),
		Email:    gofakeit.DigitN(8) + gofakeit.Email(),
		Password: "hashed",
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestUserRepository_CreateAndDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testDB)

	u := createTestUser(t, repo)
	assert.False(t, u.ID.IsZero())

	got, err := repo.GetByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.Username, got.Username)

	dup := &models.User{Username: u.Username, Email: "other-" + u.Email}
	err = repo.Create(ctx, dup)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	missing, err := repo.GetByUsername(ctx, "no-such-user-"+gofakeit.UUID())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepository_SetFollow_IsSetLike(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testDB)
	a, b := createTestUser(t, repo), createTestUser(t, repo)

	require.NoError(t, repo.SetFollow(ctx, a.ID, b.ID, true))
	require.NoError(t, repo.SetFollow(ctx, a.ID, b.ID, true))

	a2, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	b2, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, a2.Following, 1)
	assert.Len(t, b2.Followers, 1)
	assert.True(t, a2.IsFollowing(b.ID))

	require.NoError(t, repo.SetFollow(ctx, a.ID, b.ID, false))
	a3, _ := repo.GetByID(ctx, a.ID)
	b3, _ := repo.GetByID(ctx, b.ID)
	assert.Empty(t, a3.Following)
	assert.Empty(t, b3.Followers)
}

func TestUserRepository_SearchIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(testDB)
	suffix := gofakeit.DigitN(8)
	u := &models.User{Username: "NoodleFan" + suffix, Email: "noodle" + suffix + "@example.com"}
	require.NoError(t, repo.Create(ctx, u))

	found, total, err := repo.Search(ctx, "noodlefan"+suffix, models.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, found, 1)
	assert.Equal(t, u.ID, found[0].ID)

	_, total, err = repo.Search(ctx, "(", models.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Zero(t, total)
}
