package service

import (
	"context"
	"testing"

	"platefeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchUsers_CaseInsensitiveSubstring(t *testing.T) {
	f := newFixture(t, "")
	f.users.Seed("NoodleFan")
	f.users.Seed("ricelover")
	f.users.Seed("noodles4life")

	got, err := f.search.Users(context.Background(), "NOODLE", models.NewPageRequest(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Pagination.Total)

	got, err = f.search.Users(context.Background(), "example.com", models.NewPageRequest(1, 2))
	require.NoError(t, err)
	assert.Len(t, got.Data, 2)
	assert.Equal(t, 2, got.Pagination.Pages)
}

func TestSearchUsers_InsertionOrder(t *testing.T) {
	f := newFixture(t, "")
	zed := f.users.Seed("zed_noodles")
	amy := f.users.Seed("amy_noodles")

	got, err := f.search.Users(context.Background(), "noodles", models.NewPageRequest(1, 10))
	require.NoError(t, err)
	require.Len(t, got.Data, 2)
	assert.Equal(t, zed.ID, got.Data[0].ID)
	assert.Equal(t, amy.ID, got.Data[1].ID)
}

func TestSearchRestaurants_MatchesMenuNames(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	a := f.users.Seed("alice")
	place := f.restaurants.Seed("Corner Kitchen", 13.75, 100.5)
	f.restaurants.Seed("Burger Barn", 13.75, 100.5)
	_, err := f.authoring.AddMenuItem(ctx, AddMenuItemInput{UserID: a.ID, RestaurantID: place.ID, Name: "Tom Yum"})
	require.NoError(t, err)

	got, err := f.search.Restaurants(ctx, "tom yum", models.NewPageRequest(1, 10))
	require.NoError(t, err)
	require.Len(t, got.Data, 1)
	assert.Equal(t, place.ID, got.Data[0].ID)
}

func TestSearch_RequiresQuery(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.search.Users(context.Background(), "   ", models.NewPageRequest(1, 10))
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
	_, err = f.search.Restaurants(context.Background(), "", models.NewPageRequest(1, 10))
	assert.Equal(t, models.CodeValidation, models.ErrorCode(err))
}
