package service

import (
	"context"
	"strings"
	"time"

	"platefeed/internal/models"
	"platefeed/internal/observability"
	"platefeed/internal/repository"
	"platefeed/internal/validation"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProfilePostLimit caps the posts returned with a profile.
const ProfilePostLimit = 20

const maxDeviceTokenLength = 4096

// SocialService manages follows, favorites and profiles.
type SocialService struct {
	users       repository.UserRepository
	restaurants repository.RestaurantRepository
	posts       repository.PostRepository
	media       MediaIngester
	populate    populator
	now         func() time.Time
}

// ProfileUser is a user with its relationship lists resolved to summaries.
// Email is only set when the viewer is the user.
type ProfileUser struct {
	ID                  primitive.ObjectID         `json:"id"`
	Username            string                     `json:"username"`
	Email               string                     `json:"email,omitempty"`
	Bio                 string                     `json:"bio"`
	ProfilePicture      string                     `json:"profile_picture"`
	Followers           []models.UserSummary       `json:"followers"`
	Following           []models.UserSummary       `json:"following"`
	FavoriteRestaurants []models.RestaurantSummary `json:"favorite_restaurants"`
	CreatedAt           time.Time                  `json:"created_at"`
}

type Profile struct {
	User  ProfileUser   `json:"user"`
	Posts []models.Post `json:"posts"`
}

type UpdateProfileInput struct {
	UserID         primitive.ObjectID
	Username       *string
	Email          *string
	Bio            *string
	ProfilePicture string
}

func NewSocialService(
	users repository.UserRepository,
	restaurants repository.RestaurantRepository,
	posts repository.PostRepository,
	media MediaIngester,
) *SocialService {
	return &SocialService{
		users:       users,
		restaurants: restaurants,
		posts:       posts,
		media:       media,
		populate:    populator{users: users, restaurants: restaurants},
		now:         time.Now,
	}
}

// ToggleFollow follows targetID if actorID does not already, otherwise
// unfollows. Both sides of the relationship change together.
func (s *SocialService) ToggleFollow(ctx context.Context, actorID, targetID primitive.ObjectID) (following bool, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "SocialService", "ToggleFollow")
	defer func() { observability.EndSpan(span, err) }()

	if actorID == targetID {
		return false, models.NewForbiddenError("You cannot follow yourself")
	}
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return false, err
	}
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return false, err
	}

	following = !actor.IsFollowing(targetID)
	if err := s.users.SetFollow(ctx, actorID, targetID, following); err != nil {
		return false, err
	}
	observability.RecordToggle("follow", following)
	return following, nil
}

func (s *SocialService) ToggleFavorite(ctx context.Context, userID, restaurantID primitive.ObjectID) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if _, err := s.restaurants.GetByID(ctx, restaurantID); err != nil {
		return false, err
	}

	favorite := !user.HasFavorite(restaurantID)
	if err := s.users.SetFavorite(ctx, userID, restaurantID, favorite); err != nil {
		return false, err
	}
	observability.RecordToggle("favorite", favorite)
	return favorite, nil
}

// Profile returns userID with resolved relationships and their latest posts.
func (s *SocialService) Profile(ctx context.Context, userID, viewerID primitive.ObjectID) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	followers, err := s.populate.userList(ctx, user.Followers)
	if err != nil {
		return nil, err
	}
	following, err := s.populate.userList(ctx, user.Following)
	if err != nil {
		return nil, err
	}
	favorites, err := s.populate.restaurantList(ctx, user.FavoriteRestaurants)
	if err != nil {
		return nil, err
	}

	posts, _, err := s.posts.List(ctx, repository.PostQuery{Authors: []primitive.ObjectID{userID}}, models.NewPageRequest(1, ProfilePostLimit))
	if err != nil {
		return nil, err
	}
	if err := s.populate.posts(ctx, posts); err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.Post{}
	}

	profile := &Profile{
		User: ProfileUser{
			ID:                  user.ID,
			Username:            user.Username,
			Bio:                 user.Bio,
			ProfilePicture:      user.ProfilePicture,
			Followers:           followers,
			Following:           following,
			FavoriteRestaurants: favorites,
			CreatedAt:           user.CreatedAt,
		},
		Posts: posts,
	}
	if viewerID == userID {
		profile.User.Email = user.Email
	}
	return profile, nil
}

func (s *SocialService) Followers(ctx context.Context, userID primitive.ObjectID) ([]models.UserSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.populate.userList(ctx, user.Followers)
}

func (s *SocialService) Following(ctx context.Context, userID primitive.ObjectID) ([]models.UserSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.populate.userList(ctx, user.Following)
}

// UpdateProfile applies the provided fields. Username and email must stay
// unique across users.
func (s *SocialService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if username != user.Username {
			if err := s.ensureFree(ctx, s.users.GetByUsername, username, user.ID, "Username is already taken"); err != nil {
				return nil, err
			}
			user.Username = username
		}
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if err := validation.ValidateEmail(email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if email != user.Email {
			if err := s.ensureFree(ctx, s.users.GetByEmail, email, user.ID, "Email is already in use"); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if err := validation.ValidateBio(bio); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Bio = bio
	}
	if strings.TrimSpace(in.ProfilePicture) != "" {
		url, err := s.media.Ingest(ctx, in.ProfilePicture, FolderProfilePictures)
		if err != nil {
			return nil, err
		}
		user.ProfilePicture = url
	}

	user.UpdatedAt = s.now().UTC()
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SocialService) ensureFree(
	ctx context.Context,
	lookup func(context.Context, string) (*models.User, error),
	value string,
	self primitive.ObjectID,
	message string,
) error {
	other, err := lookup(ctx, value)
	if err != nil {
		return err
	}
	if other != nil && other.ID != self {
		return models.NewConflictError(message, nil)
	}
	return nil
}

// RegisterDeviceToken records an FCM registration token for push delivery.
func (s *SocialService) RegisterDeviceToken(ctx context.Context, userID primitive.ObjectID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > maxDeviceTokenLength {
		return models.NewValidationError("A valid device token is required")
	}
	return s.users.AddDeviceToken(ctx, userID, token)
}
