package service

import (
	"context"
	"math"

	"platefeed/internal/featureflags"
	"platefeed/internal/models"
	"platefeed/internal/observability"
	"platefeed/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultNearbyRadiusKm applies when a nearby query gives no radius.
const DefaultNearbyRadiusKm = 5.0

// nearbyRadiusKm applies the default to a zero radius and rejects negative or
// non-finite ones.
func nearbyRadiusKm(radius float64) (float64, error) {
	switch {
	case math.IsNaN(radius) || math.IsInf(radius, 0):
		return 0, models.NewValidationError("Radius must be a finite number")
	case radius < 0:
		return 0, models.NewValidationError("Radius must be positive")
	case radius == 0:
		return DefaultNearbyRadiusKm, nil
	}
	return radius, nil
}

// FlagSource reports whether a named feature is on for a subject.
type FlagSource interface {
	Enabled(name, subject string) bool
}

// FeedService composes the global, following and nearby post feeds.
// Every feed is newest first unless the nearby distance flag is on.
type FeedService struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	flags    FlagSource
	populate populator
}

type NearbyInput struct {
	Coordinates models.Coordinates
	RadiusKm    float64
	Page        models.PageRequest
	// Viewer is the authenticated user, if any. It only affects flag rollout.
	Viewer primitive.ObjectID
}

func NewFeedService(
	users repository.UserRepository,
	restaurants repository.RestaurantRepository,
	posts repository.PostRepository,
	flags FlagSource,
) *FeedService {
	return &FeedService{
		users:    users,
		posts:    posts,
		flags:    flags,
		populate: populator{users: users, restaurants: restaurants},
	}
}

func (s *FeedService) Global(ctx context.Context, page models.PageRequest) (models.Page[models.Post], error) {
	return s.list(ctx, "Global", repository.PostQuery{}, page)
}

// Following returns posts by userID and everyone userID follows.
func (s *FeedService) Following(ctx context.Context, userID primitive.ObjectID, page models.PageRequest) (models.Page[models.Post], error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.Page[models.Post]{}, err
	}
	authors := append([]primitive.ObjectID{userID}, user.Following...)
	return s.list(ctx, "Following", repository.PostQuery{Authors: models.UniqueIDs(authors)}, page)
}

// Nearby returns posts within RadiusKm of the given point.
func (s *FeedService) Nearby(ctx context.Context, in NearbyInput) (models.Page[models.Post], error) {
	point, err := in.Coordinates.Point()
	if err != nil {
		return models.Page[models.Post]{}, err
	}
	radius, err := nearbyRadiusKm(in.RadiusKm)
	if err != nil {
		return models.Page[models.Post]{}, err
	}

	subject := ""
	if !in.Viewer.IsZero() {
		subject = in.Viewer.Hex()
	}
	q := repository.PostQuery{Near: &repository.GeoQuery{
		Point:        point,
		RadiusMeters: radius * 1000,
		ByDistance:   s.flags != nil && s.flags.Enabled(featureflags.NearbyDistanceSort, subject),
	}}
	return s.list(ctx, "Nearby", q, in.Page)
}

// ByUser returns one user's posts, newest first.
func (s *FeedService) ByUser(ctx context.Context, userID primitive.ObjectID, page models.PageRequest) (models.Page[models.Post], error) {
	return s.list(ctx, "ByUser", repository.PostQuery{Authors: []primitive.ObjectID{userID}}, page)
}

// ByRestaurant returns posts made at one restaurant, newest first.
func (s *FeedService) ByRestaurant(ctx context.Context, restaurantID primitive.ObjectID, page models.PageRequest) (models.Page[models.Post], error) {
	return s.list(ctx, "ByRestaurant", repository.PostQuery{Restaurant: restaurantID}, page)
}

func (s *FeedService) list(ctx context.Context, mode string, q repository.PostQuery, page models.PageRequest) (out models.Page[models.Post], err error) {
	ctx, span := observability.StartServiceSpan(ctx, "FeedService", mode)
	defer func() { observability.EndSpan(span, err) }()

	posts, total, err := s.posts.List(ctx, q, page)
	if err != nil {
		return out, err
	}
	if err := s.populate.posts(ctx, posts); err != nil {
		return out, err
	}
	return models.NewPage(posts, page, total), nil
}
