package repository

import (
	"context"
	"errors"
	"time"

	"platefeed/internal/cache"
	"platefeed/internal/database"
	"platefeed/internal/models"
	"platefeed/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrStaleRestaurant is returned by Replace when another writer saved the
// restaurant after it was read.
var ErrStaleRestaurant = errors.New("restaurant was modified concurrently")

// RestaurantRepository defines persistence operations for restaurants.
type RestaurantRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Restaurant, error)
	// FindByIdentity returns the restaurant with the same name, street and city, or (nil, nil).
	FindByIdentity(ctx context.Context, name, street, city string) (*models.Restaurant, error)
	// Create inserts a restaurant. An identity clash is a conflict carrying the
	// existing record.
	Create(ctx context.Context, restaurant *models.Restaurant) error
	// Replace persists the whole document, including menu and reviews, if its
	// Version still matches the stored one. It returns ErrStaleRestaurant
	// otherwise and increments Version on success.
	Replace(ctx context.Context, restaurant *models.Restaurant) error
	List(ctx context.Context, page models.PageRequest) ([]models.Restaurant, int64, error)
	Nearby(ctx context.Context, point models.GeoPoint, radiusMeters float64, page models.PageRequest) ([]models.Restaurant, int64, error)
	Search(ctx context.Context, query string, page models.PageRequest) ([]models.Restaurant, int64, error)
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.RestaurantSummary, error)
	DetachPost(ctx context.Context, restaurantID, postID primitive.ObjectID) error
}

type restaurantRepository struct {
	col *mongo.Collection
	log *observability.RepoLogger
}

// NewRestaurantRepository returns a new RestaurantRepository implementation.
func NewRestaurantRepository(db *mongo.Database) RestaurantRepository {
	return &restaurantRepository{
		col: db.Collection(database.RestaurantsCollection),
		log: observability.NewRepoLogger(database.RestaurantsCollection),
	}
}

func ensureRestaurantSlices(r *models.Restaurant) {
	if r.Images == nil {
		r.Images = []string{}
	}
	if r.Menu == nil {
		r.Menu = []models.MenuItem{}
	}
	if r.Reviews == nil {
		r.Reviews = []models.Review{}
	}
	if r.Cuisine == nil {
		r.Cuisine = []string{}
	}
}

func (r *restaurantRepository) GetByID(ctx context.Context, id primitive.ObjectID) (restaurant *models.Restaurant, err error) {
	ctx, o := startOp(ctx, r.log, database.RestaurantsCollection, "find_by_id")
	defer func() { o.end(ctx, err) }()

	var doc models.Restaurant
	if err = r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapError(err, "Restaurant", id.Hex())
	}
	return &doc, nil
}

func (r *restaurantRepository) FindByIdentity(ctx context.Context, name, street, city string) (restaurant *models.Restaurant, err error) {
	ctx, o := startOp(ctx, r.log, database.RestaurantsCollection, "find_by_identity")
	defer func() { o.end(ctx, err) }()

	var doc models.Restaurant
	err = r.col.FindOne(ctx, bson.M{
		"name":           name,
		"address.street": street,
		"address.city":   city,
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &doc, nil
}

func (r *restaurantRepository) Create(ctx context.Context, restaurant *models.Restaurant) (err error) {
	ctx, o := startOp(ctx, r.log, database.RestaurantsCollection, "insert")
	defer func() { o.end(ctx, err) }()

	if restaurant.ID.IsZero() {
		restaurant.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	restaurant.CreatedAt = now
	restaurant.UpdatedAt = now
	ensureRestaurantSlices(restaurant)

	if _, err = r.col.InsertOne(ctx, restaurant); err != nil {
		return r.writeError(ctx, err, restaurant)
	}
	r.log.LogCreate(ctx, map[string]any{"restaurant_id": restaurant.ID.Hex(), "name": restaurant.Name})
	return nil
}

func (r *restaurantRepository) Replace(ctx context.Context, restaurant *models.Restaurant) (err error) {
	ctx, o := startOp(ctx, r.log, database.RestaurantsCollection, "replace")
	defer func() { o.end(ctx, err) }()

	restaurant.UpdatedAt = time.Now().UTC()
	ensureRestaurantSlices(restaurant)

	read := restaurant.Version
	filter := bson.M{"_id": restaurant.ID, "version": read}
	if read == 0 {
		// Documents written before versioning have no field at all.
		filter["version"] = bson.M{"$in": bson.A{0, nil}}
	}
	restaurant.Version = read + 1

	res, err := r.col.ReplaceOne(ctx, filter, restaurant)
	if err == nil && res.MatchedCount == 0 {
		err = r.missOrStale(ctx, restaurant.ID)
	}
	if err != nil {
		restaurant.Version = read
		return r.writeError(ctx, err, restaurant)
	}
	cache.InvalidateRestaurant(ctx, restaurant.ID.Hex())
	r.log.LogUpdate(ctx, map[string]any{"restaurant_id": restaurant.ID.Hex(), "menu_items": len(restaurant.Menu)})
	return nil
}

func (r *restaurantRepository) missOrStale(ctx context.Context, id primitive.ObjectID) error {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return models.NewInternalError(err)
	}
	if n == 0 {
		return models.NewNotFoundError("Restaurant", id.Hex())
	}
	return ErrStaleRestaurant
}

// writeError maps a failed insert or replace. A duplicate key on the identity
// index becomes a conflict carrying the restaurant that holds it.
func (r *restaurantRepository) writeError(ctx context.Context, err error, restaurant *models.Restaurant) error {
	if errors.Is(err, ErrStaleRestaurant) {
		return err
	}
	if !mongo.IsDuplicateKeyError(err) {
		return mapError(err, "Restaurant", restaurant.ID.Hex())
	}
	existing, findErr := r.FindByIdentity(ctx, restaurant.Name, restaurant.Address.Street, restaurant.Address.City)
	if findErr != nil || existing == nil {
		return models.NewConflictError("Restaurant already exists", nil)
	}
	return models.NewConflictError("Restaurant already exists", existing)
}

func (r *restaurantRepository) page(ctx context.Context, filter any, countFilter any, opts *options.FindOptions) ([]models.Restaurant, int64, error) {
	total, err := r.col.CountDocuments(ctx, countFilter)
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var out []models.Restaurant
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return out, total, nil
}

func byName(page models.PageRequest) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit))
}

// List returns restaurants ordered by name.
func (r *restaurantRepository) List(ctx context.Context, page models.PageRequest) (out []models.Restaurant, total int64, err error) {
	ctx, o := startOp(ctx, r.log, database.RestaurantsCollection, "list")
	defer func() { o.end(ctx, err) }()

	return r.page(ctx, bson.M{}, bson.M{}, byName(page))
}

// Nearby returns restaurants within radiusMeters of point, ordered by name.
func (r *restaurantRepository) Nearby(ctx context.Context, point models.GeoPoint, radiusMeters float64, page models.PageRequest) (out []models.Restaurant, total int64, err error) {
	ctx, o := startOp(ctx, r.log, database.RestaurantsCollection, "nearby")
	defer func() { o.end(ctx, err) }()

	filter := geoWithin(point, radiusMeters)
	return r.page(ctx, filter, filter, byName(page))
}

// Search runs a $text query and orders matches by relevance.
func (r *restaurantRepository) Search(ctx context.Context, query string, page models.PageRequest) (out []models.Restaurant, total int64, err error) {
	ctx, o := startOp(ctx, r.log, database.RestaurantsCollection, "search")
	defer func() { o.end(ctx, err) }()

	filter := bson.M{"$text": bson.M{"$search": query}}
	score := bson.M{"$meta": "textScore"}
	opts := options.Find().
		SetProjection(bson.M{"score": score}).
		SetSort(bson.D{{Key: "score", Value: score}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit))
	return r.page(ctx, filter, filter, opts)
}

func (r *restaurantRepository) Summaries(ctx context.Context, ids []primitive.ObjectID) (out map[primitive.ObjectID]models.RestaurantSummary, err error) {
	out = make(map[primitive.ObjectID]models.RestaurantSummary, len(ids))
	var missing []primitive.ObjectID
	for _, id := range models.UniqueIDs(ids) {
		var s models.RestaurantSummary
		if found, _ := cache.GetJSON(ctx, cache.RestaurantSummaryKey(id.Hex()), &s); found {
			out[id] = s
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	ctx, o := startOp(ctx, r.log, database.RestaurantsCollection, "find_summaries")
	defer func() { o.end(ctx, err) }()

	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": missing}},
		options.Find().SetProjection(bson.M{"_id": 1, "name": 1, "address": 1}))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	var found []models.RestaurantSummary
	if err = cur.All(ctx, &found); err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, s := range found {
		out[s.ID] = s
		_ = cache.SetJSON(ctx, cache.RestaurantSummaryKey(s.ID.Hex()), s, cache.RestaurantSummaryTTL)
	}
	return out, nil
}

// DetachPost removes postID from every menu item of the restaurant.
func (r *restaurantRepository) DetachPost(ctx context.Context, restaurantID, postID primitive.ObjectID) (err error) {
	ctx, o := startOp(ctx, r.log, database.RestaurantsCollection, "detach_post")
	defer func() { o.end(ctx, err) }()

	_, err = r.col.UpdateOne(ctx,
		bson.M{"_id": restaurantID, "menu.posts": postID},
		bson.M{
			"$pull": bson.M{"menu.$[].posts": postID},
			"$inc":  bson.M{"version": 1},
		},
	)
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateRestaurant(ctx, restaurantID.Hex())
	return nil
}
