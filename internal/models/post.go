package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DishSnapshot is the copy of dish fields taken when a post is created. Later
// edits to the restaurant's menu item never flow back into it.
type DishSnapshot struct {
	Name        string   `bson:"name" json:"name"`
	Description string   `bson:"description" json:"description"`
	Price       *float64 `bson:"price,omitempty" json:"price,omitempty"`
	Tags        []string `bson:"tags" json:"tags"`
}

type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	UserID    primitive.ObjectID `bson:"user" json:"user_id"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	User      *UserSummary       `bson:"-" json:"user,omitempty"`
}

type Post struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID   `bson:"user" json:"user_id"`
	RestaurantID    primitive.ObjectID   `bson:"restaurant" json:"restaurant_id"`
	Dish            DishSnapshot         `bson:"dish" json:"dish"`
	Image           string               `bson:"image" json:"image"`
	RestaurantImage string               `bson:"restaurant_image,omitempty" json:"restaurant_image,omitempty"`
	Likes           []primitive.ObjectID `bson:"likes" json:"likes"`
	Comments        []Comment            `bson:"comments" json:"comments"`
	Location        GeoPoint             `bson:"location" json:"location"`
	CreatedAt       time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at" json:"updated_at"`

	User       *UserSummary       `bson:"-" json:"user,omitempty"`
	Restaurant *RestaurantSummary `bson:"-" json:"restaurant,omitempty"`
}

func (p *Post) IsLikedBy(userID primitive.ObjectID) bool {
	return ContainsID(p.Likes, userID)
}

// ParseTags splits a comma-separated list, trims each segment and drops empty
// segments and repeats.
func ParseTags(csv string) []string {
	tags := []string{}
	seen := make(map[string]struct{})
	for _, part := range strings.Split(csv, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
