package server

import (
	"strings"

	"platefeed/internal/models"
	"platefeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type restaurantRequest struct {
	Name       string                         `json:"name"`
	Street     string                         `json:"street"`
	City       string                         `json:"city"`
	State      string                         `json:"state"`
	ZipCode    string                         `json:"zip_code"`
	Country    string                         `json:"country"`
	Latitude   *float64                       `json:"latitude"`
	Longitude  *float64                       `json:"longitude"`
	Phone      string                         `json:"phone"`
	Website    string                         `json:"website"`
	Cuisine    string                         `json:"cuisine"`
	PriceRange string                         `json:"price_range"`
	Hours      map[string]models.OpeningHours `json:"hours"`
	Image      string                         `json:"image"`
}

func (r restaurantRequest) input() service.RestaurantInput {
	return service.RestaurantInput{
		Name: r.Name,
		Address: models.Address{
			Street:  r.Street,
			City:    r.City,
			State:   r.State,
			ZipCode: r.ZipCode,
			Country: r.Country,
		},
		Coordinates: models.Coordinates{Latitude: r.Latitude, Longitude: r.Longitude},
		Phone:       r.Phone,
		Website:     r.Website,
		Cuisine:     r.Cuisine,
		PriceRange:  r.PriceRange,
		Hours:       r.Hours,
		Image:       r.Image,
	}
}

// updateRestaurantRequest leaves absent fields untouched.
type updateRestaurantRequest struct {
	Name       *string                        `json:"name"`
	Street     string                         `json:"street"`
	City       string                         `json:"city"`
	State      string                         `json:"state"`
	ZipCode    string                         `json:"zip_code"`
	Country    string                         `json:"country"`
	Latitude   *float64                       `json:"latitude"`
	Longitude  *float64                       `json:"longitude"`
	Phone      *string                        `json:"phone"`
	Website    *string                        `json:"website"`
	Cuisine    *string                        `json:"cuisine"`
	PriceRange *string                        `json:"price_range"`
	Hours      map[string]models.OpeningHours `json:"hours"`
	Image      string                         `json:"image"`
}

type menuItemRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Category    string   `json:"category"`
	Tags        string   `json:"tags"`
	Image       string   `json:"image"`
}

type reviewRequest struct {
	Text   string `json:"text"`
	Rating int    `json:"rating"`
}

// GetRestaurants handles GET /api/restaurants, sorted by name.
func (s *Server) GetRestaurants(c *fiber.Ctx) error {
	page, err := s.restaurantService.List(c.UserContext(), parsePage(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// GetNearbyRestaurants handles GET /api/restaurants/nearby?latitude=&longitude=&radius=
func (s *Server) GetNearbyRestaurants(c *fiber.Ctx) error {
	coords, radius, err := parseGeoQuery(c)
	if err != nil {
		return respondServiceError(c, err)
	}
	page, err := s.restaurantService.Nearby(c.UserContext(), coords, radius, parsePage(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// SearchRestaurants handles GET /api/restaurants/search?q=
// @Summary Full-text restaurant search by relevance
// @Tags restaurants
// @Produce json
// @Param q query string true "Search text"
// @Success 200 {object} models.Page[models.Restaurant]
// @Router /restaurants/search [get]
func (s *Server) SearchRestaurants(c *fiber.Ctx) error {
	page, err := s.searchService.Restaurants(c.UserContext(), searchTerm(c), parsePage(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// searchTerm reads "q", falling back to "query".
func searchTerm(c *fiber.Ctx) string {
	if q := c.Query("q"); q != "" {
		return q
	}
	return c.Query("query")
}

// CreateRestaurant handles POST /api/restaurants. A restaurant with the same
// name, street and city is answered with 409 and the existing record.
// @Summary Create a restaurant
// @Tags restaurants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body restaurantRequest true "Restaurant"
// @Success 201 {object} models.Restaurant
// @Failure 409 {object} models.ErrorResponse
// @Router /restaurants [post]
func (s *Server) CreateRestaurant(c *fiber.Ctx) error {
	var req restaurantRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	restaurant, err := s.authoringService.CreateRestaurant(c.UserContext(), currentUserID(c), req.input())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(restaurant)
}

// ResolveRestaurant handles POST /api/restaurants/resolve: it returns the
// restaurant with the same identity or creates it.
func (s *Server) ResolveRestaurant(c *fiber.Ctx) error {
	var req restaurantRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	restaurant, created, err := s.authoringService.ResolveRestaurant(c.UserContext(), currentUserID(c), req.input())
	if err != nil {
		return respondServiceError(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": restaurant, "created": created})
}

// GetRestaurant handles GET /api/restaurants/:id
func (s *Server) GetRestaurant(c *fiber.Ctx) error {
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}
	detail, err := s.restaurantService.Detail(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(detail)
}

// GetRestaurantPosts handles GET /api/restaurants/:id/posts
func (s *Server) GetRestaurantPosts(c *fiber.Ctx) error {
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}
	page, err := s.feedService.ByRestaurant(c.UserContext(), id, parsePage(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// UpdateRestaurant handles PUT /api/restaurants/:id
func (s *Server) UpdateRestaurant(c *fiber.Ctx) error {
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}

	var req updateRestaurantRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	in := service.UpdateRestaurantInput{
		RestaurantID: id,
		Name:         req.Name,
		Coordinates:  models.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude},
		Phone:        req.Phone,
		Website:      req.Website,
		Cuisine:      req.Cuisine,
		PriceRange:   req.PriceRange,
		Hours:        req.Hours,
		Image:        req.Image,
	}
	addr := models.Address{Street: req.Street, City: req.City, State: req.State, ZipCode: req.ZipCode, Country: req.Country}
	if strings.TrimSpace(addr.Street+addr.City+addr.State+addr.ZipCode+addr.Country) != "" {
		in.Address = &addr
	}

	restaurant, err := s.authoringService.UpdateRestaurant(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(restaurant)
}

// AddMenuItem handles POST /api/restaurants/:id/menu
func (s *Server) AddMenuItem(c *fiber.Ctx) error {
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}

	var req menuItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	restaurant, err := s.authoringService.AddMenuItem(c.UserContext(), service.AddMenuItemInput{
		UserID:       currentUserID(c),
		RestaurantID: id,
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		Category:     req.Category,
		Tags:         req.Tags,
		Image:        req.Image,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(restaurant)
}

// AddReview handles POST /api/restaurants/:id/reviews. A second review by
// the same user replaces the first.
func (s *Server) AddReview(c *fiber.Ctx) error {
	id, err := parseObjectID(c, "id")
	if err != nil {
		return nil
	}

	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	restaurant, err := s.authoringService.AddReview(c.UserContext(), service.AddReviewInput{
		UserID:       currentUserID(c),
		RestaurantID: id,
		Text:         req.Text,
		Rating:       req.Rating,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(restaurant)
}
