package seed

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"
	"time"

	"platefeed/internal/models"
	"platefeed/internal/repository"
	"platefeed/internal/service"
	"platefeed/internal/testutil"
	"platefeed/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seedFixture struct {
	users       *testutil.UserStore
	restaurants *testutil.RestaurantStore
	posts       *testutil.PostStore
	services    Services
}

func newSeedFixture() *seedFixture {
	f := &seedFixture{
		users:       testutil.NewUserStore(),
		restaurants: testutil.NewRestaurantStore(),
		posts:       testutil.NewPostStore(),
	}
	media := &testutil.MediaStub{}
	f.services = Services{
		Auth:      service.NewAuthService(f.users, "seed-test-secret", time.Hour),
		Authoring: service.NewAuthoringService(f.users, f.restaurants, f.posts, media),
		Posts:     service.NewPostService(f.users, f.restaurants, f.posts),
		Social:    service.NewSocialService(f.users, f.restaurants, f.posts, media),
	}
	return f
}

func TestDefaultCatalog(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	require.NotEmpty(t, catalog.Restaurants)

	var withHours int
	for _, r := range catalog.Restaurants {
		assert.NotEmpty(t, r.Dishes, r.Name)
		assert.NoError(t, models.ValidateLatLng(r.Latitude, r.Longitude), r.Name)
		if len(r.Hours) > 0 {
			withHours++
			for day, h := range r.Hours {
				assert.Contains(t, models.Weekdays, day)
				assert.NoError(t, validation.ValidateClock(h.Open))
				assert.NoError(t, validation.ValidateClock(h.Close))
			}
		}
	}
	assert.Positive(t, withHours)
}

func TestParseCatalog_Rejects(t *testing.T) {
	tests := map[string]string{
		"empty":     "restaurants: []",
		"no name":   "restaurants:\n  - dishes: [{name: Soup}]",
		"no dishes": "restaurants:\n  - name: Empty Kitchen",
		"bad yaml":  "restaurants: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestFactory_Deterministic(t *testing.T) {
	a, b := NewFactory(7), NewFactory(7)
	for range 5 {
		acct := a.Account(DefaultPassword)
		assert.Equal(t, acct, b.Account(DefaultPassword))
		assert.NoError(t, validation.ValidateUsername(acct.Username), acct.Username)
		assert.NoError(t, validation.ValidateEmail(acct.Email))
	}
	assert.NoError(t, validation.ValidatePassword(DefaultPassword))
}

func TestFactory_PlateImageIsPNG(t *testing.T) {
	url := NewFactory(1).PlateImage()
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/png;base64,"))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestSeeder_Run(t *testing.T) {
	f := newSeedFixture()
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	opts := Options{
		Users:          4,
		PostsPerUser:   2,
		FollowsPerUser: 2,
		ReviewsPerUser: 1,
		LikeChance:     1,
		RandomSeed:     3,
	}
	res, err := NewSeeder(f.services, catalog, opts).Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, Result{
		Users:       4,
		Restaurants: len(catalog.Restaurants),
		Posts:       8,
		Follows:     8,
		Reviews:     4,
		Likes:       8 * 3,
	}, res)
	assert.Equal(t, 8, f.posts.Len())

	page := models.NewPageRequest(1, models.MaxPageLimit)
	posts, _, err := f.posts.List(t.Context(), repository.PostQuery{}, page)
	require.NoError(t, err)
	for _, p := range posts {
		assert.Len(t, p.Likes, 3)
		r, err := f.restaurants.GetByID(t.Context(), p.RestaurantID)
		require.NoError(t, err)
		item := r.FindMenuItem(p.Dish.Name)
		require.NotNil(t, item, p.Dish.Name)
		assert.Contains(t, item.Posts, p.ID)
	}

	users, _, err := f.users.Search(t.Context(), "seed.platefeed.dev", page)
	require.NoError(t, err)
	require.Len(t, users, 4)
	for _, u := range users {
		full, err := f.users.GetByID(t.Context(), u.ID)
		require.NoError(t, err)
		assert.Len(t, full.Followers, 2)
		assert.Len(t, full.Following, 2)
		assert.NotEmpty(t, full.Bio)
	}
}

func TestSeeder_RunTwiceReusesRestaurants(t *testing.T) {
	f := newSeedFixture()
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	opts := Options{Users: 2, PostsPerUser: 1, RandomSeed: 1}
	_, err = NewSeeder(f.services, catalog, opts).Run(t.Context())
	require.NoError(t, err)

	opts.RandomSeed = 2
	_, err = NewSeeder(f.services, catalog, opts).Run(t.Context())
	require.NoError(t, err)

	_, total, err := f.restaurants.List(t.Context(), models.NewPageRequest(1, models.MaxPageLimit))
	require.NoError(t, err)
	assert.EqualValues(t, len(catalog.Restaurants), total)
	assert.Equal(t, 4, f.posts.Len())
}

func TestSeeder_NoUsers(t *testing.T) {
	f := newSeedFixture()
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	res, err := NewSeeder(f.services, catalog, Options{}).Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}
