package server

import (
	"time"

	"platefeed/internal/models"
	"platefeed/internal/notifications"
	"platefeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	RestaurantID    string   `json:"restaurant_id"`
	DishName        string   `json:"dish_name"`
	DishDescription string   `json:"dish_description"`
	DishPrice       *float64 `json:"dish_price"`
	Tags            string   `json:"tags"`
	DishImage       string   `json:"dish_image"`
	RestaurantImage string   `json:"restaurant_image"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
}

type commentRequest struct {
	Text string `json:"text"`
}

// CreatePost handles POST /api/posts
// @Summary Publish a dish photo at an existing restaurant
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createPostRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	var req createPostRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	restaurantID, ok := parseBodyID(req.RestaurantID)
	if !ok {
		return badRequest(c, "Invalid restaurant ID")
	}

	post, err := s.authoringService.CreatePost(ctx, service.CreatePostInput{
		UserID:          userID,
		RestaurantID:    restaurantID,
		DishName:        req.DishName,
		DishDescription: req.DishDescription,
		DishPrice:       req.DishPrice,
		Tags:            req.Tags,
		DishImage:       req.DishImage,
		RestaurantImage: req.RestaurantImage,
		Coordinates:     models.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude},
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	s.publishBroadcastEvent(ctx, EventPostCreated, map[string]any{
		"post_id":       post.ID,
		"author":        userSummary(post.User),
		"restaurant_id": post.RestaurantID,
		"dish_name":     post.Dish.Name,
		"created_at":    post.CreatedAt.UTC().Format(time.RFC3339Nano),
	})

	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPosts handles GET /api/posts
// @Summary Global feed
// @Tags posts
// @Produce json
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} models.Page[models.Post]
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, err := s.feedService.Global(c.UserContext(), parsePage(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// GetFeed handles GET /api/posts/feed: the caller's own posts plus those of
// everyone they follow.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page, err := s.feedService.Following(c.UserContext(), currentUserID(c), parsePage(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// GetNearbyPosts handles GET /api/posts/nearby?latitude=&longitude=&radius=
// @Summary Posts within radius km of a point, newest first
// @Tags posts
// @Produce json
// @Param latitude query number true "Latitude"
// @Param longitude query number true "Longitude"
// @Param radius query number false "Radius in km (default 5)"
// @Success 200 {object} models.Page[models.Post]
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/nearby [get]
func (s *Server) GetNearbyPosts(c *fiber.Ctx) error {
	coords, radius, err := parseGeoQuery(c)
	if err != nil {
		return respondServiceError(c, err)
	}
	viewer, _ := viewerID(c)

	page, err := s.feedService.Nearby(c.UserContext(), service.NearbyInput{
		Coordinates: coords,
		RadiusKm:    radius,
		Page:        parsePage(c),
		Viewer:      viewer,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.Get(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id. Only the author may delete.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.postService.Delete(c.UserContext(), id, currentUserID(c)); err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

// ToggleLike handles PUT /api/posts/:id/like. A second call unlikes.
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}

	post, liked, err := s.postService.ToggleLike(ctx, id, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	message := "Post unliked"
	if liked {
		message = "Post liked"
		actor := s.actorSummary(ctx, userID)
		s.notifyUser(ctx, post.UserID, userID, EventPostLiked, map[string]any{
			"post_id": post.ID,
			"user":    userSummary(actor),
			"likes":   len(post.Likes),
		}, notifications.PushMessage{
			Title: "New like",
			Body:  displayName(actor) + " liked your " + post.Dish.Name + " post",
		})
	}

	return c.JSON(fiber.Map{
		"data":     post,
		"is_liked": liked,
		"message":  message,
	})
}

// AddComment handles POST /api/posts/:id/comments and returns the post's
// comments with their authors resolved.
func (s *Server) AddComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}

	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	post, err := s.postService.AddComment(ctx, id, userID, req.Text)
	if err != nil {
		return respondServiceError(c, err)
	}

	if n := len(post.Comments); n > 0 {
		comment := post.Comments[n-1]
		s.notifyUser(ctx, post.UserID, userID, EventPostCommented, map[string]any{
			"post_id":    post.ID,
			"comment_id": comment.ID,
			"user":       userSummary(comment.User),
			"text":       comment.Text,
		}, notifications.PushMessage{
			Title: "New comment",
			Body:  displayName(comment.User) + ": " + comment.Text,
		})
	}

	return c.JSON(fiber.Map{"data": post.Comments})
}
