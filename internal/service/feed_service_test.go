package service

import (
	"context"
	"math"
	"testing"
	"time"

	"platefeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalFeed_PaginationAccounting(t *testing.T) {
	f := newFixture(t, "")
	a := f.users.Seed("alice")
	place := f.restaurants.Seed("Thai Corner", 13.75, 100.5)
	for i := 0; i < 25; i++ {
		f.seedPost(t, a, place, time.Duration(i)*time.Minute)
	}

	var seen []models.Post
	for page, want := range []int{10, 10, 5} {
		got, err := f.feed.Global(context.Background(), models.NewPageRequest(page+1, 10))
		require.NoError(t, err)
		assert.Len(t, got.Data, want)
		assert.Equal(t, int64(25), got.Pagination.Total)
		assert.Equal(t, 3, got.Pagination.Pages)
		seen = append(seen, got.Data...)
	}
	for i := 1; i < len(seen); i++ {
		assert.False(t, seen[i].CreatedAt.After(seen[i-1].CreatedAt), "feed must be newest first")
	}
	require.NotNil(t, seen[0].User)
	require.NotNil(t, seen[0].Restaurant)
}

func TestFollowingFeed_EmptyIsNotAnError(t *testing.T) {
	f := newFixture(t, "")
	a, b := f.users.Seed("alice"), f.users.Seed("bob")
	place := f.restaurants.Seed("Thai Corner", 13.75, 100.5)
	f.seedPost(t, b, place, 0)

	got, err := f.feed.Following(context.Background(), a.ID, models.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Empty(t, got.Data)
	assert.NotNil(t, got.Data)
	assert.Zero(t, got.Pagination.Total)
	assert.Zero(t, got.Pagination.Pages)
}

func TestFollowingFeed_IncludesSelfAndFollowed(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	a, b, c := f.users.Seed("alice"), f.users.Seed("bob"), f.users.Seed("carol")
	place := f.restaurants.Seed("Thai Corner", 13.75, 100.5)
	own := f.seedPost(t, a, place, time.Minute)
	followed := f.seedPost(t, b, place, 0)
	f.seedPost(t, c, place, 0)
	_, err := f.social.ToggleFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)

	got, err := f.feed.Following(ctx, a.ID, models.NewPageRequest(1, 10))
	require.NoError(t, err)
	require.Len(t, got.Data, 2)
	assert.Equal(t, followed.ID, got.Data[0].ID)
	assert.Equal(t, own.ID, got.Data[1].ID)
}

func TestNearbyFeed(t *testing.T) {
	seed := func(f *fixture) (near, nearer, far *models.Post) {
		a := f.users.Seed("alice")
		here := f.restaurants.Seed("Here", 13.7500, 100.5000)
		nextDoor := f.restaurants.Seed("Next Door", 13.7600, 100.5000)
		away := f.restaurants.Seed("Away", 14.5, 101.5)
		// The older post is the nearest one.
		nearer = f.seedPost(t, a, here, time.Hour)
		near = f.seedPost(t, a, nextDoor, 0)
		far = f.seedPost(t, a, away, 0)
		return near, nearer, far
	}

	t.Run("newest first by default", func(t *testing.T) {
		f := newFixture(t, "")
		near, nearer, _ := seed(f)
		got, err := f.feed.Nearby(context.Background(), NearbyInput{
			Coordinates: coords(13.75, 100.5), Page: models.NewPageRequest(1, 10),
		})
		require.NoError(t, err)
		require.Len(t, got.Data, 2)
		assert.Equal(t, near.ID, got.Data[0].ID)
		assert.Equal(t, nearer.ID, got.Data[1].ID)
		assert.Equal(t, int64(2), got.Pagination.Total)
	})

	t.Run("distance order behind flag", func(t *testing.T) {
		f := newFixture(t, "nearby_distance_sort=on")
		near, nearer, _ := seed(f)
		got, err := f.feed.Nearby(context.Background(), NearbyInput{
			Coordinates: coords(13.75, 100.5), Page: models.NewPageRequest(1, 10),
		})
		require.NoError(t, err)
		require.Len(t, got.Data, 2)
		assert.Equal(t, nearer.ID, got.Data[0].ID)
		assert.Equal(t, near.ID, got.Data[1].ID)
	})

	t.Run("radius widens", func(t *testing.T) {
		f := newFixture(t, "")
		seed(f)
		got, err := f.feed.Nearby(context.Background(), NearbyInput{
			Coordinates: coords(13.75, 100.5), RadiusKm: 500, Page: models.NewPageRequest(1, 10),
		})
		require.NoError(t, err)
		assert.Len(t, got.Data, 3)
	})

	t.Run("requires coordinates", func(t *testing.T) {
		f := newFixture(t, "")
		lat := 13.75
		_, err := f.feed.Nearby(context.Background(), NearbyInput{Coordinates: models.Coordinates{Latitude: &lat}})
		assert.Equal(t, models.CodeValidation, models.ErrorCode(err))

		_, err = f.feed.Nearby(context.Background(), NearbyInput{Coordinates: coords(0, 0), RadiusKm: -1})
		assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
	})

	t.Run("rejects non-finite input", func(t *testing.T) {
		f := newFixture(t, "")
		for _, in := range []NearbyInput{
			{Coordinates: coords(math.NaN(), 100.5)},
			{Coordinates: coords(13.75, math.Inf(1))},
			{Coordinates: coords(13.75, 100.5), RadiusKm: math.NaN()},
			{Coordinates: coords(13.75, 100.5), RadiusKm: math.Inf(1)},
		} {
			_, err := f.feed.Nearby(context.Background(), in)
			assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
		}
		_, err := f.venue.Nearby(context.Background(), coords(13.75, 100.5), math.NaN(), models.NewPageRequest(1, 10))
		assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
	})
}
