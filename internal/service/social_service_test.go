package service

import (
	"context"
	"testing"
	"time"

	"platefeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func assertFollowSymmetry(t *testing.T, f *fixture, a, b primitive.ObjectID) {
	t.Helper()
	ua, err := f.users.GetByID(context.Background(), a)
	require.NoError(t, err)
	ub, err := f.users.GetByID(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, ua.IsFollowing(b), models.ContainsID(ub.Followers, a))
}

func TestToggleFollow_TwiceRestoresState(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	a, b := f.users.Seed("alice"), f.users.Seed("bob")

	following, err := f.social.ToggleFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, following)
	assertFollowSymmetry(t, f, a.ID, b.ID)

	following, err = f.social.ToggleFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, following)
	assertFollowSymmetry(t, f, a.ID, b.ID)

	ua, _ := f.users.GetByID(ctx, a.ID)
	ub, _ := f.users.GetByID(ctx, b.ID)
	assert.Empty(t, ua.Following)
	assert.Empty(t, ub.Followers)
}

func TestToggleFollow_SelfIsForbidden(t *testing.T) {
	f := newFixture(t, "")
	a := f.users.Seed("alice")

	_, err := f.social.ToggleFollow(context.Background(), a.ID, a.ID)
	assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))

	ua, _ := f.users.GetByID(context.Background(), a.ID)
	assert.Empty(t, ua.Following)
	assert.Empty(t, ua.Followers)
}

func TestToggleFollow_UnknownTarget(t *testing.T) {
	f := newFixture(t, "")
	a := f.users.Seed("alice")

	_, err := f.social.ToggleFollow(context.Background(), a.ID, primitive.NewObjectID())
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestToggleFavorite(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	a := f.users.Seed("alice")
	place := f.restaurants.Seed("Thai Corner", 13.75, 100.5)

	on, err := f.social.ToggleFavorite(ctx, a.ID, place.ID)
	require.NoError(t, err)
	assert.True(t, on)
	off, err := f.social.ToggleFavorite(ctx, a.ID, place.ID)
	require.NoError(t, err)
	assert.False(t, off)

	_, err = f.social.ToggleFavorite(ctx, a.ID, primitive.NewObjectID())
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestProfile_ResolvesRelationshipsAndCapsPosts(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	a, b := f.users.Seed("alice"), f.users.Seed("bob")
	place := f.restaurants.Seed("Thai Corner", 13.75, 100.5)
	_, err := f.social.ToggleFollow(ctx, b.ID, a.ID)
	require.NoError(t, err)
	_, err = f.social.ToggleFavorite(ctx, a.ID, place.ID)
	require.NoError(t, err)
	for i := 0; i < ProfilePostLimit+5; i++ {
		f.seedPost(t, a, place, time.Duration(i)*time.Minute)
	}

	profile, err := f.social.Profile(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Empty(t, profile.User.Email)
	require.Len(t, profile.User.Followers, 1)
	assert.Equal(t, "bob", profile.User.Followers[0].Username)
	require.Len(t, profile.User.FavoriteRestaurants, 1)
	assert.Equal(t, "Thai Corner", profile.User.FavoriteRestaurants[0].Name)
	require.Len(t, profile.Posts, ProfilePostLimit)
	assert.True(t, profile.Posts[0].CreatedAt.After(profile.Posts[1].CreatedAt))
	assert.NotNil(t, profile.Posts[0].User)

	own, err := f.social.Profile(ctx, a.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Email, own.User.Email)
}

func TestFollowersAndFollowing(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	a, b, c := f.users.Seed("alice"), f.users.Seed("bob"), f.users.Seed("carol")
	for _, id := range []primitive.ObjectID{b.ID, c.ID} {
		_, err := f.social.ToggleFollow(ctx, id, a.ID)
		require.NoError(t, err)
	}

	followers, err := f.social.Followers(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, followers, 2)

	following, err := f.social.Following(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, a.ID, following[0].ID)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	a := f.users.Seed("alice")
	f.users.Seed("bob")

	taken := "bob"
	_, err := f.social.UpdateProfile(ctx, UpdateProfileInput{UserID: a.ID, Username: &taken})
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	takenEmail := "BOB@example.com"
	_, err = f.social.UpdateProfile(ctx, UpdateProfileInput{UserID: a.ID, Email: &takenEmail})
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))

	bad := "no"
	_, err = f.social.UpdateProfile(ctx, UpdateProfileInput{UserID: a.ID, Username: &bad})
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

	name, bio := "alice_eats", "  street food  "
	user, err := f.social.UpdateProfile(ctx, UpdateProfileInput{
		UserID: a.ID, Username: &name, Bio: &bio, ProfilePicture: "data:image/png;base64,AA",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice_eats", user.Username)
	assert.Equal(t, "street food", user.Bio)
	assert.NotEmpty(t, user.ProfilePicture)
	assert.Equal(t, []string{FolderProfilePictures}, f.media.Folders)
}

func TestRegisterDeviceToken(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	a := f.users.Seed("alice")

	require.NoError(t, f.social.RegisterDeviceToken(ctx, a.ID, " fcm-token "))
	require.NoError(t, f.social.RegisterDeviceToken(ctx, a.ID, "fcm-token"))
	ua, _ := f.users.GetByID(ctx, a.ID)
	assert.Equal(t, []string{"fcm-token"}, ua.DeviceTokens)

	err := f.social.RegisterDeviceToken(ctx, a.ID, "   ")
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}
