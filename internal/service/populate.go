package service

import (
	"context"

	"platefeed/internal/models"
	"platefeed/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// populator resolves the user and restaurant summaries embedded in responses.
type populator struct {
	users       repository.UserRepository
	restaurants repository.RestaurantRepository
}

// posts fills post authors, restaurants and comment authors in place.
func (p populator) posts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	var userIDs, restaurantIDs []primitive.ObjectID
	for i := range posts {
		userIDs = append(userIDs, posts[i].UserID)
		restaurantIDs = append(restaurantIDs, posts[i].RestaurantID)
		for _, c := range posts[i].Comments {
			userIDs = append(userIDs, c.UserID)
		}
	}

	users, err := p.users.Summaries(ctx, models.UniqueIDs(userIDs))
	if err != nil {
		return err
	}
	restaurants, err := p.restaurants.Summaries(ctx, models.UniqueIDs(restaurantIDs))
	if err != nil {
		return err
	}

	for i := range posts {
		if u, ok := users[posts[i].UserID]; ok {
			posts[i].User = &u
		}
		if r, ok := restaurants[posts[i].RestaurantID]; ok {
			posts[i].Restaurant = &r
		}
		for j := range posts[i].Comments {
			if u, ok := users[posts[i].Comments[j].UserID]; ok {
				posts[i].Comments[j].User = &u
			}
		}
	}
	return nil
}

func (p populator) post(ctx context.Context, post *models.Post) error {
	one := []models.Post{*post}
	if err := p.posts(ctx, one); err != nil {
		return err
	}
	*post = one[0]
	return nil
}

// userList returns summaries for ids in their original order, skipping unknown users.
func (p populator) userList(ctx context.Context, ids []primitive.ObjectID) ([]models.UserSummary, error) {
	found, err := p.users.Summaries(ctx, models.UniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range models.UniqueIDs(ids) {
		if s, ok := found[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (p populator) restaurantList(ctx context.Context, ids []primitive.ObjectID) ([]models.RestaurantSummary, error) {
	found, err := p.restaurants.Summaries(ctx, models.UniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	out := make([]models.RestaurantSummary, 0, len(ids))
	for _, id := range models.UniqueIDs(ids) {
		if s, ok := found[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}
