package service

import (
	"testing"
	"time"

	"platefeed/internal/cache"
	"platefeed/internal/featureflags"
	"platefeed/internal/models"
	"platefeed/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fixture struct {
	users       *testutil.UserStore
	restaurants *testutil.RestaurantStore
	posts       *testutil.PostStore
	media       *testutil.MediaStub

	authoring *AuthoringService
	post      *PostService
	feed      *FeedService
	social    *SocialService
	search    *SearchService
	venue     *RestaurantService
}

func newFixture(t *testing.T, flags string) *fixture {
	t.Helper()
	f := &fixture{
		users:       testutil.NewUserStore(),
		restaurants: testutil.NewRestaurantStore(),
		posts:       testutil.NewPostStore(),
		media:       &testutil.MediaStub{},
	}
	f.authoring = NewAuthoringService(f.users, f.restaurants, f.posts, f.media)
	f.post = NewPostService(f.users, f.restaurants, f.posts)
	f.feed = NewFeedService(f.users, f.restaurants, f.posts, featureflags.NewManager(flags))
	f.social = NewSocialService(f.users, f.restaurants, f.posts, f.media)
	f.search = NewSearchService(f.users, f.restaurants)
	f.venue = NewRestaurantService(f.users, f.restaurants, f.posts)
	return f
}

func coords(lat, lng float64) models.Coordinates {
	return models.Coordinates{Latitude: &lat, Longitude: &lng}
}

// seedPost stores a post directly with the given age.
func (f *fixture) seedPost(t *testing.T, author *models.User, restaurant *models.Restaurant, age time.Duration) *models.Post {
	t.Helper()
	p := &models.Post{
		UserID:       author.ID,
		RestaurantID: restaurant.ID,
		Dish:         models.DishSnapshot{Name: "Dish", Tags: []string{}},
		Image:        "https://cdn.test/dish.jpg",
		Location:     restaurant.Location,
		CreatedAt:    time.Now().UTC().Add(-age),
	}
	if err := f.posts.Create(t.Context(), p); err != nil {
		t.Fatalf("seed post: %v", err)
	}
	return p
}

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}
