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

func TestRestaurantDetail_RecentPosts(t *testing.T) {
	f := newFixture(t, "")
	a := f.users.Seed("alice")
	place := f.restaurants.Seed("Thai Corner", 13.75, 100.5)
	other := f.restaurants.Seed("Elsewhere", 13.75, 100.5)
	for i := 0; i < RecentPostLimit+3; i++ {
		f.seedPost(t, a, place, time.Duration(i)*time.Minute)
	}
	f.seedPost(t, a, other, 0)

	detail, err := f.venue.Detail(context.Background(), place.ID)
	require.NoError(t, err)
	assert.Equal(t, place.ID, detail.Restaurant.ID)
	require.Len(t, detail.RecentPosts, RecentPostLimit)
	for _, p := range detail.RecentPosts {
		assert.Equal(t, place.ID, p.RestaurantID)
		require.NotNil(t, p.User)
	}

	_, err = f.venue.Detail(context.Background(), primitive.NewObjectID())
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

func TestRestaurantDetail_ServedFromCacheUntilWrite(t *testing.T) {
	setupMiniredis(t)
	f := newFixture(t, "")
	ctx := context.Background()
	place := f.restaurants.Seed("Thai Corner", 13.75, 100.5)

	detail, err := f.venue.Detail(ctx, place.ID)
	require.NoError(t, err)
	assert.Equal(t, "Thai Corner", detail.Restaurant.Name)

	// The in-memory store does not invalidate, so the cached copy wins.
	renamed := *place
	renamed.Name = "Thai Corner II"
	require.NoError(t, f.restaurants.Replace(ctx, &renamed))
	detail, err = f.venue.Detail(ctx, place.ID)
	require.NoError(t, err)
	assert.Equal(t, "Thai Corner", detail.Restaurant.Name)
}

func TestRestaurantList_SortedByName(t *testing.T) {
	f := newFixture(t, "")
	for _, n := range []string{"Zaab", "Aroy", "Mango"} {
		f.restaurants.Seed(n, 13.75, 100.5)
	}
	got, err := f.venue.List(context.Background(), models.NewPageRequest(1, 2))
	require.NoError(t, err)
	require.Len(t, got.Data, 2)
	assert.Equal(t, "Aroy", got.Data[0].Name)
	assert.Equal(t, "Mango", got.Data[1].Name)
	assert.Equal(t, 2, got.Pagination.Pages)
}

func TestRestaurantNearby_DefaultRadius(t *testing.T) {
	f := newFixture(t, "")
	f.restaurants.Seed("In Range", 13.76, 100.5)
	f.restaurants.Seed("Out Of Range", 13.9, 100.5)

	got, err := f.venue.Nearby(context.Background(), coords(13.75, 100.5), 0, models.NewPageRequest(1, 10))
	require.NoError(t, err)
	require.Len(t, got.Data, 1)
	assert.Equal(t, "In Range", got.Data[0].Name)
}
