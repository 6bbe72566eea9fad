package service

import (
	"context"

	"platefeed/internal/cache"
	"platefeed/internal/models"
	"platefeed/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecentPostLimit caps the posts returned with restaurant detail.
const RecentPostLimit = 10

// RestaurantService serves restaurant reads.
type RestaurantService struct {
	restaurants repository.RestaurantRepository
	posts       repository.PostRepository
	populate    populator
}

type RestaurantDetail struct {
	Restaurant  *models.Restaurant `json:"restaurant"`
	RecentPosts []models.Post      `json:"recent_posts"`
}

func NewRestaurantService(
	users repository.UserRepository,
	restaurants repository.RestaurantRepository,
	posts repository.PostRepository,
) *RestaurantService {
	return &RestaurantService{
		restaurants: restaurants,
		posts:       posts,
		populate:    populator{users: users, restaurants: restaurants},
	}
}

// List returns restaurants sorted by name.
func (s *RestaurantService) List(ctx context.Context, page models.PageRequest) (models.Page[models.Restaurant], error) {
	restaurants, total, err := s.restaurants.List(ctx, page)
	if err != nil {
		return models.Page[models.Restaurant]{}, err
	}
	return models.NewPage(restaurants, page, total), nil
}

// Nearby returns restaurants within radiusKm (default 5) sorted by name.
func (s *RestaurantService) Nearby(ctx context.Context, coords models.Coordinates, radiusKm float64, page models.PageRequest) (models.Page[models.Restaurant], error) {
	point, err := coords.Point()
	if err != nil {
		return models.Page[models.Restaurant]{}, err
	}
	radiusKm, err = nearbyRadiusKm(radiusKm)
	if err != nil {
		return models.Page[models.Restaurant]{}, err
	}
	restaurants, total, err := s.restaurants.Nearby(ctx, point, radiusKm*1000, page)
	if err != nil {
		return models.Page[models.Restaurant]{}, err
	}
	return models.NewPage(restaurants, page, total), nil
}

// Detail returns the restaurant plus its most recent posts. The restaurant
// document is served through the summary cache until the next write.
func (s *RestaurantService) Detail(ctx context.Context, id primitive.ObjectID) (*RestaurantDetail, error) {
	var restaurant models.Restaurant
	err := cache.Aside(ctx, cache.RestaurantDetailKey(id.Hex()), &restaurant, cache.RestaurantSummaryTTL, func() error {
		r, err := s.restaurants.GetByID(ctx, id)
		if err != nil {
			return err
		}
		restaurant = *r
		return nil
	})
	if err != nil {
		return nil, err
	}

	posts, _, err := s.posts.List(ctx, repository.PostQuery{Restaurant: id}, models.NewPageRequest(1, RecentPostLimit))
	if err != nil {
		return nil, err
	}
	if err := s.populate.posts(ctx, posts); err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return &RestaurantDetail{Restaurant: &restaurant, RecentPosts: posts}, nil
}
