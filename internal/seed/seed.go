package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"platefeed/internal/database"
	"platefeed/internal/middleware"
	"platefeed/internal/models"
	"platefeed/internal/service"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Options configuration for the seeder
type Options struct {
	Users          int
	PostsPerUser   int
	FollowsPerUser int
	ReviewsPerUser int
	// LikeChance is the probability that a user likes any given post.
	LikeChance    float64
	CommentChance float64
	Password      string
	RandomSeed    int64
}

func DefaultOptions() Options {
	return Options{
		Users:          20,
		PostsPerUser:   4,
		FollowsPerUser: 5,
		ReviewsPerUser: 2,
		LikeChance:     0.2,
		CommentChance:  0.05,
		Password:       DefaultPassword,
		RandomSeed:     42,
	}
}

// Services are the write paths the seeder drives.
type Services struct {
	Auth      *service.AuthService
	Authoring *service.AuthoringService
	Posts     *service.PostService
	Social    *service.SocialService
}

// Result counts what a run created.
type Result struct {
	Users       int
	Restaurants int
	Posts       int
	Follows     int
	Reviews     int
	Likes       int
	Comments    int
}

type Seeder struct {
	svc     Services
	catalog *Catalog
	opts    Options
	factory *Factory
	log     *slog.Logger
}

func NewSeeder(svc Services, catalog *Catalog, opts Options) *Seeder {
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	return &Seeder{
		svc:     svc,
		catalog: catalog,
		opts:    opts,
		factory: NewFactory(opts.RandomSeed),
		log:     middleware.Logger.With(slog.String("component", "seed")),
	}
}

type seededRestaurant struct {
	restaurant *models.Restaurant
	source     CatalogRestaurant
}

// Run creates users, resolves the catalog restaurants, publishes posts and
// then adds follows, reviews, likes and comments between the seeded users.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	var res Result

	users, err := s.seedUsers(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to create users: %w", err)
	}
	res.Users = len(users)
	s.log.Info("users created", slog.Int("count", res.Users))
	if len(users) == 0 {
		return res, nil
	}

	restaurants, err := s.seedRestaurants(ctx, users)
	if err != nil {
		return res, fmt.Errorf("failed to create restaurants: %w", err)
	}
	res.Restaurants = len(restaurants)
	s.log.Info("restaurants resolved", slog.Int("count", res.Restaurants))

	posts, err := s.seedPosts(ctx, users, restaurants)
	if err != nil {
		return res, fmt.Errorf("failed to create posts: %w", err)
	}
	res.Posts = len(posts)
	s.log.Info("posts created", slog.Int("count", res.Posts))

	if res.Follows, err = s.seedFollows(ctx, users); err != nil {
		return res, fmt.Errorf("failed to create follows: %w", err)
	}
	if res.Reviews, err = s.seedReviews(ctx, users, restaurants); err != nil {
		return res, fmt.Errorf("failed to create reviews: %w", err)
	}
	if res.Likes, res.Comments, err = s.seedEngagement(ctx, users, posts); err != nil {
		return res, fmt.Errorf("failed to create engagement: %w", err)
	}

	s.log.Info("seeding complete",
		slog.Int("follows", res.Follows),
		slog.Int("reviews", res.Reviews),
		slog.Int("likes", res.Likes),
		slog.Int("comments", res.Comments),
	)
	return res, nil
}

func (s *Seeder) seedUsers(ctx context.Context) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, s.opts.Users)
	for range s.opts.Users {
		result, err := s.svc.Auth.Register(ctx, s.factory.Account(s.opts.Password))
		if err != nil {
			return nil, err
		}
		bio := s.factory.Bio()
		if _, err := s.svc.Social.UpdateProfile(ctx, service.UpdateProfileInput{UserID: result.User.ID, Bio: &bio}); err != nil {
			return nil, err
		}
		ids = append(ids, result.User.ID)
	}
	return ids, nil
}

// seedRestaurants resolves rather than creates, so seeding twice reuses the
// existing restaurants.
func (s *Seeder) seedRestaurants(ctx context.Context, users []primitive.ObjectID) ([]seededRestaurant, error) {
	out := make([]seededRestaurant, 0, len(s.catalog.Restaurants))
	for i, src := range s.catalog.Restaurants {
		creator := users[i%len(users)]
		r, _, err := s.svc.Authoring.ResolveRestaurant(ctx, creator, src.input())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Name, err)
		}
		out = append(out, seededRestaurant{restaurant: r, source: src})
	}
	return out, nil
}

func (s *Seeder) seedPosts(ctx context.Context, users []primitive.ObjectID, restaurants []seededRestaurant) ([]*models.Post, error) {
	if len(restaurants) == 0 {
		return nil, nil
	}
	var posts []*models.Post
	for _, userID := range users {
		for range s.opts.PostsPerUser {
			venue := restaurants[s.factory.Intn(len(restaurants))]
			dish := venue.source.Dishes[s.factory.Intn(len(venue.source.Dishes))]
			lat, lng := venue.source.Latitude, venue.source.Longitude

			in := service.CreatePostInput{
				UserID:          userID,
				RestaurantID:    venue.restaurant.ID,
				DishName:        dish.Name,
				DishDescription: dish.Description,
				Tags:            strings.Join(dish.Tags, ","),
				DishImage:       s.factory.PlateImage(),
				Coordinates:     models.Coordinates{Latitude: &lat, Longitude: &lng},
			}
			if dish.Price > 0 {
				price := dish.Price
				in.DishPrice = &price
			}
			post, err := s.svc.Authoring.CreatePost(ctx, in)
			if err != nil {
				return nil, fmt.Errorf("%s at %s: %w", dish.Name, venue.source.Name, err)
			}
			posts = append(posts, post)
		}
	}
	return posts, nil
}

// seedFollows makes each user follow the next FollowsPerUser users in a
// ring, so every user ends up with followers too.
func (s *Seeder) seedFollows(ctx context.Context, users []primitive.ObjectID) (int, error) {
	n := len(users)
	count := 0
	for i, actor := range users {
		for k := 1; k <= s.opts.FollowsPerUser && k < n; k++ {
			target := users[(i+k)%n]
			following, err := s.svc.Social.ToggleFollow(ctx, actor, target)
			if err != nil {
				return count, err
			}
			if !following {
				// Already followed by an earlier run; restore it.
				if _, err := s.svc.Social.ToggleFollow(ctx, actor, target); err != nil {
					return count, err
				}
			}
			count++
		}
	}
	return count, nil
}

func (s *Seeder) seedReviews(ctx context.Context, users []primitive.ObjectID, restaurants []seededRestaurant) (int, error) {
	if len(restaurants) == 0 {
		return 0, nil
	}
	count := 0
	for i, userID := range users {
		for k := 0; k < s.opts.ReviewsPerUser && k < len(restaurants); k++ {
			venue := restaurants[(i+k)%len(restaurants)]
			if _, err := s.svc.Authoring.AddReview(ctx, service.AddReviewInput{
				UserID:       userID,
				RestaurantID: venue.restaurant.ID,
				Text:         s.factory.ReviewText(),
				Rating:       s.factory.Rating(),
			}); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func (s *Seeder) seedEngagement(ctx context.Context, users []primitive.ObjectID, posts []*models.Post) (likes, comments int, err error) {
	for _, post := range posts {
		for _, userID := range users {
			if userID == post.UserID {
				continue
			}
			if s.factory.Chance(s.opts.LikeChance) {
				if _, liked, err := s.svc.Posts.ToggleLike(ctx, post.ID, userID); err != nil {
					return likes, comments, err
				} else if liked {
					likes++
				}
			}
			if s.factory.Chance(s.opts.CommentChance) {
				if _, err := s.svc.Posts.AddComment(ctx, post.ID, userID, s.factory.Comment()); err != nil {
					return likes, comments, err
				}
				comments++
			}
		}
	}
	return likes, comments, nil
}

// Clear drops every application collection and recreates the indexes.
func Clear(ctx context.Context, db *mongo.Database) error {
	for _, name := range database.PersistentCollections() {
		if err := db.Collection(name).Drop(ctx); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	return database.EnsureIndexes(ctx, db)
}
