package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"platefeed/internal/models"
	"platefeed/internal/observability"
	"platefeed/internal/repository"
	"platefeed/internal/validation"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// restaurantWriteAttempts bounds how often a restaurant write is reapplied
// after losing to a concurrent writer.
const restaurantWriteAttempts = 5

// AuthoringService owns every write that creates or merges content: posts,
// restaurants, menu items and reviews.
type AuthoringService struct {
	restaurants repository.RestaurantRepository
	posts       repository.PostRepository
	media       MediaIngester
	populate    populator
	now         func() time.Time
}

type CreatePostInput struct {
	UserID          primitive.ObjectID
	RestaurantID    primitive.ObjectID
	DishName        string
	DishDescription string
	DishPrice       *float64
	Tags            string
	DishImage       string
	RestaurantImage string
	Coordinates     models.Coordinates
}

// RestaurantInput carries the fields for creating or resolving a restaurant.
type RestaurantInput struct {
	Name        string
	Address     models.Address
	Coordinates models.Coordinates
	Phone       string
	Website     string
	Cuisine     string
	PriceRange  string
	Hours       map[string]models.OpeningHours
	Image       string
}

// UpdateRestaurantInput changes only the fields that are set.
type UpdateRestaurantInput struct {
	RestaurantID primitive.ObjectID
	Name         *string
	Address      *models.Address
	Coordinates  models.Coordinates
	Phone        *string
	Website      *string
	Cuisine      *string
	PriceRange   *string
	Hours        map[string]models.OpeningHours
	Image        string
}

type AddMenuItemInput struct {
	UserID       primitive.ObjectID
	RestaurantID primitive.ObjectID
	Name         string
	Description  string
	Price        *float64
	Category     string
	Tags         string
	Image        string
}

type AddReviewInput struct {
	UserID       primitive.ObjectID
	RestaurantID primitive.ObjectID
	Text         string
	Rating       int
}

func NewAuthoringService(
	users repository.UserRepository,
	restaurants repository.RestaurantRepository,
	posts repository.PostRepository,
	media MediaIngester,
) *AuthoringService {
	return &AuthoringService{
		restaurants: restaurants,
		posts:       posts,
		media:       media,
		populate:    populator{users: users, restaurants: restaurants},
		now:         time.Now,
	}
}

// CreatePost publishes a dish photo at an existing restaurant. Both images are
// stored before anything is written, the dish is merged into the menu, and
// the post keeps its own snapshot of the dish fields.
func (s *AuthoringService) CreatePost(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "AuthoringService", "CreatePost")
	defer func() { observability.EndSpan(span, err) }()

	dishName, err := validation.ValidateText("Dish name", in.DishName, true, validation.MaxDishNameLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if strings.TrimSpace(in.DishImage) == "" {
		return nil, models.NewValidationError("Dish image is required")
	}
	if in.DishPrice != nil && *in.DishPrice < 0 {
		return nil, models.NewValidationError("Price cannot be negative")
	}
	location, err := in.Coordinates.Point()
	if err != nil {
		return nil, err
	}
	if in.RestaurantID.IsZero() {
		return nil, models.NewValidationError("Restaurant is required")
	}

	restaurant, err := s.restaurants.GetByID(ctx, in.RestaurantID)
	if err != nil {
		return nil, err
	}

	dishImage, err := s.media.Ingest(ctx, in.DishImage, FolderDishes)
	if err != nil {
		return nil, err
	}
	var restaurantImage string
	if strings.TrimSpace(in.RestaurantImage) != "" {
		if restaurantImage, err = s.media.Ingest(ctx, in.RestaurantImage, FolderRestaurants); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	dish := models.DishSnapshot{
		Name:        dishName,
		Description: strings.TrimSpace(in.DishDescription),
		Price:       in.DishPrice,
		Tags:        models.ParseTags(in.Tags),
	}
	post = &models.Post{
		ID:              primitive.NewObjectID(),
		UserID:          in.UserID,
		RestaurantID:    restaurant.ID,
		Dish:            dish,
		Image:           dishImage,
		RestaurantImage: restaurantImage,
		Location:        location,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var outcome string
	_, err = s.saveRestaurant(ctx, restaurant, func(r *models.Restaurant) error {
		outcome = "merged"
		if r.RecordDishPost(dish, dishImage, in.UserID, post.ID) {
			outcome = "new"
		}
		r.AddImage(restaurantImage)
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.MenuMerges.WithLabelValues(outcome).Inc()

	if err := s.posts.Create(ctx, post); err != nil {
		if detachErr := s.restaurants.DetachPost(ctx, restaurant.ID, post.ID); detachErr != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to detach post from menu after insert failure",
				slog.String("restaurant_id", restaurant.ID.Hex()),
				slog.String("post_id", post.ID.Hex()),
				slog.String("error", detachErr.Error()),
			)
		}
		return nil, err
	}
	observability.PostsCreated.Inc()

	if err := s.populate.post(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateRestaurant rejects a name, street and city that already exist with a
// conflict carrying the existing record.
func (s *AuthoringService) CreateRestaurant(ctx context.Context, userID primitive.ObjectID, in RestaurantInput) (restaurant *models.Restaurant, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "AuthoringService", "CreateRestaurant")
	defer func() { observability.EndSpan(span, err) }()

	restaurant, err = s.buildRestaurant(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.restaurants.FindByIdentity(ctx, restaurant.Name, restaurant.Address.Street, restaurant.Address.City)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Restaurant already exists", existing)
	}

	if strings.TrimSpace(in.Image) != "" {
		url, err := s.media.Ingest(ctx, in.Image, FolderRestaurants)
		if err != nil {
			return nil, err
		}
		restaurant.AddImage(url)
	}

	restaurant.CreatedBy = userID
	now := s.now().UTC()
	restaurant.CreatedAt = now
	restaurant.UpdatedAt = now
	if err := s.restaurants.Create(ctx, restaurant); err != nil {
		return nil, err
	}
	return restaurant, nil
}

// ResolveRestaurant returns the restaurant matching in's identity, creating it
// when absent. created reports which happened.
func (s *AuthoringService) ResolveRestaurant(ctx context.Context, userID primitive.ObjectID, in RestaurantInput) (*models.Restaurant, bool, error) {
	name := strings.TrimSpace(in.Name)
	existing, err := s.restaurants.FindByIdentity(ctx, name, strings.TrimSpace(in.Address.Street), strings.TrimSpace(in.Address.City))
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	restaurant, err := s.CreateRestaurant(ctx, userID, in)
	if err != nil {
		// Lost a race with a concurrent create.
		if models.ErrorCode(err) == models.CodeConflict {
			if existing, ok := conflictRestaurant(err); ok {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	return restaurant, true, nil
}

func (s *AuthoringService) UpdateRestaurant(ctx context.Context, in UpdateRestaurantInput) (restaurant *models.Restaurant, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "AuthoringService", "UpdateRestaurant")
	defer func() { observability.EndSpan(span, err) }()

	restaurant, err = s.restaurants.GetByID(ctx, in.RestaurantID)
	if err != nil {
		return nil, err
	}

	var imageURL string
	return s.saveRestaurant(ctx, restaurant, func(r *models.Restaurant) error {
		if err := applyRestaurantUpdate(r, in); err != nil {
			return err
		}
		if in.Name != nil || in.Address != nil {
			existing, err := s.restaurants.FindByIdentity(ctx, r.Name, r.Address.Street, r.Address.City)
			if err != nil {
				return err
			}
			if existing != nil && existing.ID != r.ID {
				return models.NewConflictError("Restaurant already exists", existing)
			}
		}
		if strings.TrimSpace(in.Image) != "" && imageURL == "" {
			url, err := s.media.Ingest(ctx, in.Image, FolderRestaurants)
			if err != nil {
				return err
			}
			imageURL = url
		}
		r.AddImage(imageURL)
		return nil
	})
}

func applyRestaurantUpdate(r *models.Restaurant, in UpdateRestaurantInput) error {
	if in.Name != nil {
		name, err := validation.ValidateText("Name", *in.Name, true, validation.MaxRestaurantNameLength)
		if err != nil {
			return models.NewValidationError(err.Error())
		}
		r.Name = name
	}
	if in.Address != nil {
		r.Address = mergeAddress(r.Address, *in.Address)
	}
	if in.Coordinates.Latitude != nil || in.Coordinates.Longitude != nil {
		point, err := in.Coordinates.Point()
		if err != nil {
			return err
		}
		r.Location = point
	}
	if in.Phone != nil {
		r.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Website != nil {
		website := strings.TrimSpace(*in.Website)
		if err := validation.ValidateWebsite(website); err != nil {
			return models.NewValidationError(err.Error())
		}
		r.Website = website
	}
	if in.Cuisine != nil {
		r.Cuisine = models.ParseTags(*in.Cuisine)
	}
	if in.PriceRange != nil {
		if *in.PriceRange != "" && !models.IsValidPriceRange(*in.PriceRange) {
			return models.NewValidationError("Price range must be one of $, $$, $$$, $$$$")
		}
		r.PriceRange = *in.PriceRange
	}
	if in.Hours != nil {
		if err := validateHours(in.Hours); err != nil {
			return err
		}
		r.Hours = in.Hours
	}
	return nil
}

// AddMenuItem merges an explicit menu submission into the restaurant's menu.
func (s *AuthoringService) AddMenuItem(ctx context.Context, in AddMenuItemInput) (restaurant *models.Restaurant, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "AuthoringService", "AddMenuItem")
	defer func() { observability.EndSpan(span, err) }()

	name, err := validation.ValidateText("Name", in.Name, true, validation.MaxDishNameLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Price != nil && *in.Price < 0 {
		return nil, models.NewValidationError("Price cannot be negative")
	}

	restaurant, err = s.restaurants.GetByID(ctx, in.RestaurantID)
	if err != nil {
		return nil, err
	}

	var imageURL string
	if strings.TrimSpace(in.Image) != "" {
		if imageURL, err = s.media.Ingest(ctx, in.Image, FolderMenuItems); err != nil {
			return nil, err
		}
	}

	var created bool
	restaurant, err = s.saveRestaurant(ctx, restaurant, func(r *models.Restaurant) error {
		_, created = r.UpsertMenuItem(models.MenuItemInput{
			Name:          name,
			Description:   strings.TrimSpace(in.Description),
			Price:         in.Price,
			Category:      strings.TrimSpace(in.Category),
			ImageURL:      imageURL,
			Tags:          models.ParseTags(in.Tags),
			ContributorID: in.UserID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := "merged"
	if created {
		outcome = "new"
	}
	observability.MenuMerges.WithLabelValues(outcome).Inc()
	return restaurant, nil
}

// AddReview writes the user's single review and recomputes the mean rating.
func (s *AuthoringService) AddReview(ctx context.Context, in AddReviewInput) (restaurant *models.Restaurant, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "AuthoringService", "AddReview")
	defer func() { observability.EndSpan(span, err) }()

	if in.Rating < 1 || in.Rating > 5 {
		return nil, models.NewValidationError("Rating must be between 1 and 5")
	}
	text, err := validation.ValidateText("Review", in.Text, false, validation.MaxReviewLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	restaurant, err = s.restaurants.GetByID(ctx, in.RestaurantID)
	if err != nil {
		return nil, err
	}
	return s.saveRestaurant(ctx, restaurant, func(r *models.Restaurant) error {
		r.UpsertReview(in.UserID, text, in.Rating, s.now().UTC())
		return nil
	})
}

// saveRestaurant applies mutate to restaurant and replaces it. When another
// writer saved first, the restaurant is reloaded and mutate applied again, so
// mutate must only depend on its argument and values fixed before the call.
func (s *AuthoringService) saveRestaurant(ctx context.Context, restaurant *models.Restaurant, mutate func(*models.Restaurant) error) (*models.Restaurant, error) {
	for attempt := 1; ; attempt++ {
		if err := mutate(restaurant); err != nil {
			return nil, err
		}
		restaurant.UpdatedAt = s.now().UTC()
		err := s.restaurants.Replace(ctx, restaurant)
		if err == nil {
			return restaurant, nil
		}
		if !errors.Is(err, repository.ErrStaleRestaurant) {
			return nil, err
		}
		if attempt == restaurantWriteAttempts {
			return nil, models.NewConflictError("Restaurant is being edited concurrently, please retry", nil)
		}
		if restaurant, err = s.restaurants.GetByID(ctx, restaurant.ID); err != nil {
			return nil, err
		}
	}
}

func (s *AuthoringService) buildRestaurant(in RestaurantInput) (*models.Restaurant, error) {
	name, err := validation.ValidateText("Name", in.Name, true, validation.MaxRestaurantNameLength)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	location, err := in.Coordinates.Point()
	if err != nil {
		return nil, err
	}
	website := strings.TrimSpace(in.Website)
	if err := validation.ValidateWebsite(website); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.PriceRange != "" && !models.IsValidPriceRange(in.PriceRange) {
		return nil, models.NewValidationError("Price range must be one of $, $$, $$$, $$$$")
	}
	if err := validateHours(in.Hours); err != nil {
		return nil, err
	}

	return &models.Restaurant{
		Name:       name,
		Address:    trimAddress(in.Address),
		Location:   location,
		Images:     []string{},
		Menu:       []models.MenuItem{},
		Reviews:    []models.Review{},
		Cuisine:    models.ParseTags(in.Cuisine),
		PriceRange: in.PriceRange,
		Phone:      strings.TrimSpace(in.Phone),
		Website:    website,
		Hours:      in.Hours,
	}, nil
}

func validateHours(hours map[string]models.OpeningHours) error {
	for day, h := range hours {
		known := false
		for _, d := range models.Weekdays {
			if d == day {
				known = true
				break
			}
		}
		if !known {
			return models.NewValidationError(fmt.Sprintf("Unknown weekday %q in hours", day))
		}
		for _, v := range []string{h.Open, h.Close} {
			if err := validation.ValidateClock(v); err != nil {
				return models.NewValidationError(err.Error())
			}
		}
	}
	return nil
}

func trimAddress(a models.Address) models.Address {
	return models.Address{
		Street:  strings.TrimSpace(a.Street),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		ZipCode: strings.TrimSpace(a.ZipCode),
		Country: strings.TrimSpace(a.Country),
	}
}

// mergeAddress keeps current values for fields left empty in update.
func mergeAddress(current, update models.Address) models.Address {
	update = trimAddress(update)
	pick := func(next, prev string) string {
		if next != "" {
			return next
		}
		return prev
	}
	return models.Address{
		Street:  pick(update.Street, current.Street),
		City:    pick(update.City, current.City),
		State:   pick(update.State, current.State),
		ZipCode: pick(update.ZipCode, current.ZipCode),
		Country: pick(update.Country, current.Country),
	}
}

func conflictRestaurant(err error) (*models.Restaurant, bool) {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return nil, false
	}
	r, ok := appErr.Existing.(*models.Restaurant)
	return r, ok && r != nil
}
