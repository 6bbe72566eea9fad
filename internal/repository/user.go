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

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	// GetByEmail and GetByUsername return (nil, nil) when no user matches.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, user *models.User) error
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error)
	SetFollow(ctx context.Context, followerID, targetID primitive.ObjectID, follow bool) error
	SetFavorite(ctx context.Context, userID, restaurantID primitive.ObjectID, favorite bool) error
	Search(ctx context.Context, query string, page models.PageRequest) ([]models.UserSummary, int64, error)
	AddDeviceToken(ctx context.Context, userID primitive.ObjectID, token string) error
	RemoveDeviceTokens(ctx context.Context, userID primitive.ObjectID, tokens []string) error
}

type userRepository struct {
	db  *mongo.Database
	col *mongo.Collection
	log *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{
		db:  db,
		col: db.Collection(database.UsersCollection),
		log: observability.NewRepoLogger(database.UsersCollection),
	}
}

var summaryProjection = bson.M{"_id": 1, "username": 1, "profile_picture": 1}

func (r *userRepository) GetByID(ctx context.Context, id primitive.ObjectID) (user *models.User, err error) {
	ctx, o := startOp(ctx, r.log, database.UsersCollection, "find_by_id")
	defer func() { o.end(ctx, err) }()

	var u models.User
	if err = r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, mapError(err, "User", id.Hex())
	}
	return &u, nil
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M, name string) (user *models.User, err error) {
	ctx, o := startOp(ctx, r.log, database.UsersCollection, name)
	defer func() { o.end(ctx, err) }()

	var u models.User
	err = r.col.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email}, "find_by_email")
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username}, "find_by_username")
}

func (r *userRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, o := startOp(ctx, r.log, database.UsersCollection, "insert")
	defer func() { o.end(ctx, err) }()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Followers == nil {
		user.Followers = []primitive.ObjectID{}
	}
	if user.Following == nil {
		user.Following = []primitive.ObjectID{}
	}
	if user.FavoriteRestaurants == nil {
		user.FavoriteRestaurants = []primitive.ObjectID{}
	}

	if _, err = r.col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.NewConflictError("User already exists", nil)
		}
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"user_id": user.ID.Hex()})
	return nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) (err error) {
	ctx, o := startOp(ctx, r.log, database.UsersCollection, "update_profile")
	defer func() { o.end(ctx, err) }()

	user.UpdatedAt = time.Now().UTC()
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"username":        user.Username,
		"email":           user.Email,
		"bio":             user.Bio,
		"profile_picture": user.ProfilePicture,
		"updated_at":      user.UpdatedAt,
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.NewConflictError("Username or email already taken", nil)
		}
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("User", user.ID.Hex())
	}
	cache.InvalidateUser(ctx, user.ID.Hex())
	r.log.LogUpdate(ctx, map[string]any{"user_id": user.ID.Hex()})
	return nil
}

// Summaries resolves ids to summaries, serving from the cache where possible.
// Unknown ids are absent from the result.
func (r *userRepository) Summaries(ctx context.Context, ids []primitive.ObjectID) (out map[primitive.ObjectID]models.UserSummary, err error) {
	out = make(map[primitive.ObjectID]models.UserSummary, len(ids))
	var missing []primitive.ObjectID
	for _, id := range models.UniqueIDs(ids) {
		var s models.UserSummary
		if found, _ := cache.GetJSON(ctx, cache.UserSummaryKey(id.Hex()), &s); found {
			out[id] = s
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	ctx, o := startOp(ctx, r.log, database.UsersCollection, "find_summaries")
	defer func() { o.end(ctx, err) }()

	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": missing}}, options.Find().SetProjection(summaryProjection))
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	var found []models.UserSummary
	if err = cur.All(ctx, &found); err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, s := range found {
		out[s.ID] = s
		_ = cache.SetJSON(ctx, cache.UserSummaryKey(s.ID.Hex()), s, cache.UserSummaryTTL)
	}
	return out, nil
}

// SetFollow adds or removes the follow edge on both users in one transaction.
func (r *userRepository) SetFollow(ctx context.Context, followerID, targetID primitive.ObjectID, follow bool) (err error) {
	ctx, o := startOp(ctx, r.log, database.UsersCollection, "set_follow")
	defer func() { o.end(ctx, err) }()

	operator := "$pull"
	if follow {
		operator = "$addToSet"
	}
	now := time.Now().UTC()

	err = database.WithTransaction(ctx, r.db.Client(), func(sc mongo.SessionContext) error {
		res, err := r.col.UpdateOne(sc, bson.M{"_id": followerID}, bson.M{
			operator: bson.M{"following": targetID},
			"$set":   bson.M{"updated_at": now},
		})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return models.NewNotFoundError("User", followerID.Hex())
		}

		res, err = r.col.UpdateOne(sc, bson.M{"_id": targetID}, bson.M{
			operator: bson.M{"followers": followerID},
			"$set":   bson.M{"updated_at": now},
		})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return models.NewNotFoundError("User", targetID.Hex())
		}
		return nil
	})
	if err != nil {
		return mapError(err, "User", targetID.Hex())
	}
	r.log.LogUpdate(ctx, map[string]any{
		"follower_id": followerID.Hex(),
		"target_id":   targetID.Hex(),
		"follow":      follow,
	})
	return nil
}

func (r *userRepository) SetFavorite(ctx context.Context, userID, restaurantID primitive.ObjectID, favorite bool) (err error) {
	ctx, o := startOp(ctx, r.log, database.UsersCollection, "set_favorite")
	defer func() { o.end(ctx, err) }()

	operator := "$pull"
	if favorite {
		operator = "$addToSet"
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		operator: bson.M{"favorite_restaurants": restaurantID},
		"$set":   bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("User", userID.Hex())
	}
	return nil
}

// Search matches query as a case-insensitive substring of username or email.
// Matches come back in insertion order.
func (r *userRepository) Search(ctx context.Context, query string, page models.PageRequest) (users []models.UserSummary, total int64, err error) {
	ctx, o := startOp(ctx, r.log, database.UsersCollection, "search")
	defer func() { o.end(ctx, err) }()

	pattern := containsInsensitive(query)
	filter := bson.M{"$or": bson.A{
		bson.M{"username": pattern},
		bson.M{"email": pattern},
	}}

	total, err = r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	opts := options.Find().
		SetProjection(summaryProjection).
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(page.Skip()).
		SetLimit(int64(page.Limit))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	if err = cur.All(ctx, &users); err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

func (r *userRepository) AddDeviceToken(ctx context.Context, userID primitive.ObjectID, token string) (err error) {
	ctx, o := startOp(ctx, r.log, database.UsersCollection, "add_device_token")
	defer func() { o.end(ctx, err) }()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$addToSet": bson.M{"device_tokens": token}})
	if err != nil {
		return models.NewInternalError(err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("User", userID.Hex())
	}
	return nil
}

func (r *userRepository) RemoveDeviceTokens(ctx context.Context, userID primitive.ObjectID, tokens []string) (err error) {
	if len(tokens) == 0 {
		return nil
	}
	ctx, o := startOp(ctx, r.log, database.UsersCollection, "remove_device_tokens")
	defer func() { o.end(ctx, err) }()

	_, err = r.col.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$pull": bson.M{"device_tokens": bson.M{"$in": tokens}}})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
