package service

import (
	"context"
	"strings"

	"platefeed/internal/models"
	"platefeed/internal/observability"
	"platefeed/internal/repository"
)

const maxSearchQueryLength = 200

type SearchService struct {
	users       repository.UserRepository
	restaurants repository.RestaurantRepository
}

func NewSearchService(users repository.UserRepository, restaurants repository.RestaurantRepository) *SearchService {
	return &SearchService{users: users, restaurants: restaurants}
}

func searchQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", models.NewValidationError("Search query is required")
	}
	if len(q) > maxSearchQueryLength {
		return "", models.NewValidationError("Search query too long")
	}
	return q, nil
}

// Restaurants ranks restaurants by text relevance over name, menu item names and cuisine.
func (s *SearchService) Restaurants(ctx context.Context, query string, page models.PageRequest) (out models.Page[models.Restaurant], err error) {
	ctx, span := observability.StartServiceSpan(ctx, "SearchService", "Restaurants")
	defer func() { observability.EndSpan(span, err) }()

	q, err := searchQuery(query)
	if err != nil {
		return out, err
	}
	restaurants, total, err := s.restaurants.Search(ctx, q, page)
	if err != nil {
		return out, err
	}
	return models.NewPage(restaurants, page, total), nil
}

// Users matches query as a case-insensitive substring of username or email.
func (s *SearchService) Users(ctx context.Context, query string, page models.PageRequest) (out models.Page[models.UserSummary], err error) {
	ctx, span := observability.StartServiceSpan(ctx, "SearchService", "Users")
	defer func() { observability.EndSpan(span, err) }()

	q, err := searchQuery(query)
	if err != nil {
		return out, err
	}
	users, total, err := s.users.Search(ctx, q, page)
	if err != nil {
		return out, err
	}
	return models.NewPage(users, page, total), nil
}
