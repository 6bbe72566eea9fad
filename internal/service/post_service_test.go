package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"platefeed/internal/models"
	"platefeed/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// postRepoStub overrides selected PostStore methods.
type postRepoStub struct {
	*testutil.PostStore
	setLikeFn func(context.Context, primitive.ObjectID, primitive.ObjectID, bool) (*models.Post, error)
}

func (s *postRepoStub) SetLike(ctx context.Context, postID, userID primitive.ObjectID, like bool) (*models.Post, error) {
	if s.setLikeFn != nil {
		return s.setLikeFn(ctx, postID, userID, like)
	}
	return s.PostStore.SetLike(ctx, postID, userID, like)
}

func TestToggleLike_SecondLikeRemoves(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	a, b := f.users.Seed("alice"), f.users.Seed("bob")
	place := f.restaurants.Seed("Thai Corner", 13.75, 100.5)
	p := f.seedPost(t, a, place, 0)

	post, liked, err := f.post.ToggleLike(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, []primitive.ObjectID{b.ID}, post.Likes)

	post, liked, err = f.post.ToggleLike(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Empty(t, post.Likes)
}

func TestToggleLike_StoreFailureSurfaces(t *testing.T) {
	f := newFixture(t, "")
	a := f.users.Seed("alice")
	place := f.restaurants.Seed("Thai Corner", 13.75, 100.5)
	p := f.seedPost(t, a, place, 0)

	stub := &postRepoStub{
		PostStore: f.posts,
		setLikeFn: func(context.Context, primitive.ObjectID, primitive.ObjectID, bool) (*models.Post, error) {
			return nil, models.NewInternalError(errors.New("store down"))
		},
	}
	svc := NewPostService(f.users, f.restaurants, stub)

	_, _, err := svc.ToggleLike(context.Background(), p.ID, a.ID)
	assert.Equal(t, models.CodeInternal, models.ErrorCode(err))
}

func TestAddComment(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	a, b := f.users.Seed("alice"), f.users.Seed("bob")
	place := f.restaurants.Seed("Thai Corner", 13.75, 100.5)
	p := f.seedPost(t, a, place, 0)

	post, err := f.post.AddComment(ctx, p.ID, b.ID, "  looks great  ")
	require.NoError(t, err)
	require.Len(t, post.Comments, 1)
	assert.Equal(t, "looks great", post.Comments[0].Text)
	require.NotNil(t, post.Comments[0].User)
	assert.Equal(t, "bob", post.Comments[0].User.Username)

	_, err = f.post.AddComment(ctx, p.ID, b.ID, " ")
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
	_, err = f.post.AddComment(ctx, p.ID, b.ID, strings.Repeat("x", 1001))
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
	_, err = f.post.AddComment(ctx, primitive.NewObjectID(), b.ID, "hi")
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestDeletePost_OwnerOnly(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	a, b := f.users.Seed("alice"), f.users.Seed("bob")
	place := f.restaurants.Seed("Thai Corner", 13.75, 100.5)
	post, err := f.authoring.CreatePost(ctx, postInput(a, place, "Pad Thai"))
	require.NoError(t, err)

	_, err = f.post.Delete(ctx, post.ID, b.ID)
	assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))
	assert.Equal(t, 1, f.posts.Len())

	_, err = f.post.Delete(ctx, post.ID, a.ID)
	require.NoError(t, err)
	assert.Zero(t, f.posts.Len())

	stored, err := f.restaurants.GetByID(ctx, place.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Menu[0].Posts)

	_, err = f.post.Get(ctx, post.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}
