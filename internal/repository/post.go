package repository

import (
	"context"
	"time"

	"platefeed/internal/database"
	"platefeed/internal/models"
	"platefeed/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GeoQuery restricts posts to a radius around a point.
type GeoQuery struct {
	Point        models.GeoPoint
	RadiusMeters float64
	// ByDistance orders results nearest first instead of newest first.
	ByDistance bool
}

// PostQuery selects posts. Zero fields do not constrain the result.
type PostQuery struct {
	// Authors limits results to these users when non-nil. An empty, non-nil
	// slice matches nothing.
	Authors    []primitive.ObjectID
	Restaurant primitive.ObjectID
	Near       *GeoQuery
}

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	// List returns posts matching q, newest first unless q.Near.ByDistance is set.
	List(ctx context.Context, q PostQuery, page models.PageRequest) ([]models.Post, int64, error)
	SetLike(ctx context.Context, postID, userID primitive.ObjectID, like bool) (*models.Post, error)
	AddComment(ctx context.Context, postID primitive.ObjectID, comment models.Comment) (*models.Post, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type postRepository struct {
	col *mongo.Collection
	log *observability.RepoLogger
}

// NewPostRepository returns a new PostRepository implementation.
func NewPostRepository(db *mongo.Database) PostRepository {
	return &postRepository{
		col: db.Collection(database.PostsCollection),
		log: observability.NewRepoLogger(database.PostsCollection),
	}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (err error) {
	ctx, o := startOp(ctx, r.log, database.PostsCollection, "insert")
	defer func() { o.end(ctx, err) }()

	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now
	if post.Likes == nil {
		post.Likes = []primitive.ObjectID{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	if post.Dish.Tags == nil {
		post.Dish.Tags = []string{}
	}

	if _, err = r.col.InsertOne(ctx, post); err != nil {
		return mapError(err, "Post", post.ID.Hex())
	}
	r.log.LogCreate(ctx, map[string]any{
		"post_id":       post.ID.Hex(),
		"restaurant_id": post.RestaurantID.Hex(),
	})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id primitive.ObjectID) (post *models.Post, err error) {
	ctx, o := startOp(ctx, r.log, database.PostsCollection, "find_by_id")
	defer func() { o.end(ctx, err) }()

	var doc models.Post
	if err = r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapError(err, "Post", id.Hex())
	}
	return &doc, nil
}

func (q PostQuery) filters() (find bson.M, count bson.M) {
	base := bson.M{}
	if q.Authors != nil {
		base["user"] = bson.M{"$in": q.Authors}
	}
	if !q.Restaurant.IsZero() {
		base["restaurant"] = q.Restaurant
	}
	if q.Near == nil {
		return base, base
	}

	count = bson.M{}
	for k, v := range base {
		count[k] = v
	}
	for k, v := range geoWithin(q.Near.Point, q.Near.RadiusMeters) {
		count[k] = v
	}
	if !q.Near.ByDistance {
		return count, count
	}

	find = bson.M{}
	for k, v := range base {
		find[k] = v
	}
	for k, v := range near(q.Near.Point, q.Near.RadiusMeters) {
		find[k] = v
	}
	return find, count
}

func (r *postRepository) List(ctx context.Context, q PostQuery, page models.PageRequest) (posts []models.Post, total int64, err error) {
	ctx, o := startOp(ctx, r.log, database.PostsCollection, "list")
	defer func() { o.end(ctx, err) }()

	find, count := q.filters()
	total, err = r.col.CountDocuments(ctx, count)
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	opts := options.Find().SetSkip(page.Skip()).SetLimit(int64(page.Limit))
	if q.Near == nil || !q.Near.ByDistance {
		opts.SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	}
	cur, err := r.col.Find(ctx, find, opts)
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	if err = cur.All(ctx, &posts); err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func (r *postRepository) findAndUpdate(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc models.Post
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		return nil, mapError(err, "Post", id.Hex())
	}
	return &doc, nil
}

// SetLike adds or removes userID from the post's like set.
func (r *postRepository) SetLike(ctx context.Context, postID, userID primitive.ObjectID, like bool) (post *models.Post, err error) {
	ctx, o := startOp(ctx, r.log, database.PostsCollection, "set_like")
	defer func() { o.end(ctx, err) }()

	operator := "$pull"
	if like {
		operator = "$addToSet"
	}
	return r.findAndUpdate(ctx, postID, bson.M{
		operator: bson.M{"likes": userID},
		"$set":   bson.M{"updated_at": time.Now().UTC()},
	})
}

func (r *postRepository) AddComment(ctx context.Context, postID primitive.ObjectID, comment models.Comment) (post *models.Post, err error) {
	ctx, o := startOp(ctx, r.log, database.PostsCollection, "add_comment")
	defer func() { o.end(ctx, err) }()

	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	post, err = r.findAndUpdate(ctx, postID, bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err == nil {
		r.log.LogUpdate(ctx, map[string]any{"post_id": postID.Hex(), "comment_id": comment.ID.Hex()})
	}
	return post, err
}

func (r *postRepository) Delete(ctx context.Context, id primitive.ObjectID) (err error) {
	ctx, o := startOp(ctx, r.log, database.PostsCollection, "delete")
	defer func() { o.end(ctx, err) }()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return models.NewInternalError(err)
	}
	if res.DeletedCount == 0 {
		return models.NewNotFoundError("Post", id.Hex())
	}
	r.log.LogDelete(ctx, map[string]any{"post_id": id.Hex()})
	return nil
}
