package database

import (
	"context"
	"fmt"
	"log/slog"

	"platefeed/internal/middleware"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IndexSpec is one index the application relies on.
type IndexSpec struct {
	Collection string
	Model      mongo.IndexModel
}

// RequiredIndexes lists the indexes backing uniqueness, geo and text queries
// and the createdAt-ordered feeds.
func RequiredIndexes() []IndexSpec {
	return []IndexSpec{
		{UsersCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName("username_unique").SetUnique(true),
		}},
		{UsersCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		}},
		{RestaurantsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "location", Value: "2dsphere"}},
			Options: options.Index().SetName("location_2dsphere"),
		}},
		{RestaurantsCollection, mongo.IndexModel{
			Keys: bson.D{
				{Key: "name", Value: "text"},
				{Key: "menu.name", Value: "text"},
				{Key: "cuisine", Value: "text"},
			},
			Options: options.Index().SetName("restaurant_text"),
		}},
		{RestaurantsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("name_asc"),
		}},
		{RestaurantsCollection, mongo.IndexModel{
			Keys: bson.D{
				{Key: "name", Value: 1},
				{Key: "address.street", Value: 1},
				{Key: "address.city", Value: 1},
			},
			Options: options.Index().SetName("identity_unique").SetUnique(true),
		}},
		{PostsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "location", Value: "2dsphere"}},
			Options: options.Index().SetName("location_2dsphere"),
		}},
		{PostsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("created_at_desc"),
		}},
		{PostsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("user_created_at"),
		}},
		{PostsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "restaurant", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("restaurant_created_at"),
		}},
	}
}

// EnsureIndexes creates any missing required index. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	byCollection := map[string][]mongo.IndexModel{}
	for _, spec := range RequiredIndexes() {
		byCollection[spec.Collection] = append(byCollection[spec.Collection], spec.Model)
	}

	for _, name := range PersistentCollections() {
		models := byCollection[name]
		if len(models) == 0 {
			continue
		}
		created, err := db.Collection(name).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
		middleware.Logger.Info("indexes ensured",
			slog.String("collection", name),
			slog.Any("indexes", created),
		)
	}
	return nil
}
