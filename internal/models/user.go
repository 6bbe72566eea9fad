// Package models defines the documents stored by platefeed and the domain rules
// that operate on them.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account holder. Follower, following and favorite lists have set semantics.
type User struct {
	ID                  primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username            string               `bson:"username" json:"username"`
	Email               string               `bson:"email" json:"email"`
	Password            string               `bson:"password" json:"-"`
	Bio                 string               `bson:"bio" json:"bio"`
	ProfilePicture      string               `bson:"profile_picture" json:"profile_picture"`
	Followers           []primitive.ObjectID `bson:"followers" json:"followers"`
	Following           []primitive.ObjectID `bson:"following" json:"following"`
	FavoriteRestaurants []primitive.ObjectID `bson:"favorite_restaurants" json:"favorite_restaurants"`
	DeviceTokens        []string             `bson:"device_tokens,omitempty" json:"-"`
	CreatedAt           time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time            `bson:"updated_at" json:"updated_at"`
}

// UserSummary is the identity subset embedded in posts, comments and lists.
type UserSummary struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	Username       string             `bson:"username" json:"username"`
	ProfilePicture string             `bson:"profile_picture" json:"profile_picture"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, ProfilePicture: u.ProfilePicture}
}

func (u *User) IsFollowing(id primitive.ObjectID) bool {
	return ContainsID(u.Following, id)
}

func (u *User) HasFavorite(restaurantID primitive.ObjectID) bool {
	return ContainsID(u.FavoriteRestaurants, restaurantID)
}

// ContainsID reports whether id is present in ids.
func ContainsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// UniqueIDs returns ids with duplicates and zero values removed, preserving order.
func UniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
