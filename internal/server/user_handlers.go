package server

import (
	"platefeed/internal/notifications"
	"platefeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type updateProfileRequest struct {
	Username       *string `json:"username"`
	Email          *string `json:"email"`
	Bio            *string `json:"bio"`
	ProfilePicture string  `json:"profile_picture"`
}

type deviceTokenRequest struct {
	Token string `json:"token"`
}

// GetUserProfile handles GET /api/users/:id
// @Summary Profile with relationships and recent posts
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} service.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}
	viewer, _ := viewerID(c)

	profile, err := s.socialService.Profile(c.UserContext(), id, viewer)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(profile)
}

// GetUserPosts handles GET /api/users/:id/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}
	page, err := s.feedService.ByUser(c.UserContext(), id, parsePage(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// UpdateProfile handles PUT /api/users/profile
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user, err := s.socialService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:         currentUserID(c),
		Username:       req.Username,
		Email:          req.Email,
		Bio:            req.Bio,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// ToggleFollow handles PUT /api/users/:id/follow. A second call unfollows.
// @Summary Follow or unfollow a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} map[string]any
// @Failure 403 {object} models.ErrorResponse
// @Router /users/{id}/follow [put]
func (s *Server) ToggleFollow(c *fiber.Ctx) error {
	ctx := c.UserContext()
	actorID := currentUserID(c)
	targetID, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}

	following, err := s.socialService.ToggleFollow(ctx, actorID, targetID)
	if err != nil {
		return respondServiceError(c, err)
	}

	message := "User unfollowed"
	if following {
		message = "User followed"
		actor := s.actorSummary(ctx, actorID)
		s.notifyUser(ctx, targetID, actorID, EventUserFollowed, map[string]any{
			"user": userSummary(actor),
		}, notifications.PushMessage{
			Title: "New follower",
			Body:  displayName(actor) + " started following you",
		})
	}

	return c.JSON(fiber.Map{"is_following": following, "message": message})
}

// ToggleFavorite handles PUT /api/users/favorites/:restaurantId
func (s *Server) ToggleFavorite(c *fiber.Ctx) error {
	restaurantID, err := parseObjectID(c, "restaurantId")
	if err != nil {
		return nil
	}

	favorite, err := s.socialService.ToggleFavorite(c.UserContext(), currentUserID(c), restaurantID)
	if err != nil {
		return respondServiceError(c, err)
	}

	message := "Restaurant removed from favorites"
	if favorite {
		message = "Restaurant added to favorites"
	}
	return c.JSON(fiber.Map{"is_favorite": favorite, "message": message})
}

// GetFollowers handles GET /api/users/:id/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}
	users, err := s.socialService.Followers(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"data": users})
}

// GetFollowing handles GET /api/users/:id/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}
	users, err := s.socialService.Following(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"data": users})
}

// SearchUsers handles GET /api/users/search?q=
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	page, err := s.searchService.Users(c.UserContext(), searchTerm(c), parsePage(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// RegisterDeviceToken handles PUT /api/users/device-token. Registered
// devices receive push notifications when they are enabled.
func (s *Server) RegisterDeviceToken(c *fiber.Ctx) error {
	var req deviceTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := s.socialService.RegisterDeviceToken(c.UserContext(), currentUserID(c), req.Token); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Device registered"})
}
