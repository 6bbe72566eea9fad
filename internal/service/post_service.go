package service

import (
	"context"
	"time"

	"platefeed/internal/models"
	"platefeed/internal/observability"
	"platefeed/internal/repository"
	"platefeed/internal/validation"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PostService struct {
	posts       repository.PostRepository
	restaurants repository.RestaurantRepository
	populate    populator
	now         func() time.Time
}

func NewPostService(
	users repository.UserRepository,
	restaurants repository.RestaurantRepository,
	posts repository.PostRepository,
) *PostService {
	return &PostService{
		posts:       posts,
		restaurants: restaurants,
		populate:    populator{users: users, restaurants: restaurants},
		now:         time.Now,
	}
}

func (s *PostService) Get(ctx context.Context, postID primitive.ObjectID) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.populate.post(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// ToggleLike flips userID's like on the post and reports the resulting state.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	liked := !post.IsLikedBy(userID)
	post, err = s.posts.SetLike(ctx, postID, userID, liked)
	if err != nil {
		return nil, false, err
	}
	observability.RecordToggle("like", liked)
	if err := s.populate.post(ctx, post); err != nil {
		return nil, false, err
	}
	return post, liked, nil
}

// AddComment appends a comment and returns the post with comment authors resolved.
func (s *PostService) AddComment(ctx context.Context, postID, userID primitive.ObjectID, text string) (*models.Post, error) {
	text, err := validation.ValidateText("Comment text", text, true, validation.MaxCommentLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	post, err := s.posts.AddComment(ctx, postID, models.Comment{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Text:      text,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.populate.post(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Delete removes a post owned by userID and unlinks it from the restaurant's menu.
func (s *PostService) Delete(ctx context.Context, postID, userID primitive.ObjectID) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, models.NewForbiddenError("Not authorized to delete this post")
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return nil, err
	}
	if err := s.restaurants.DetachPost(ctx, post.RestaurantID, postID); err != nil && models.ErrorCode(err) != models.CodeNotFound {
		return nil, err
	}
	return post, nil
}
