package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultMenuCategory is assigned to menu items created without a category.
const DefaultMenuCategory = "Uncategorized"

// PriceRanges lists the accepted price tiers.
var PriceRanges = []string{"$", "$$", "$$$", "$$$$"}

// Weekdays lists the accepted keys of Restaurant.Hours.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

type Address struct {
	Street  string `bson:"street" json:"street"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	ZipCode string `bson:"zip_code" json:"zip_code"`
	Country string `bson:"country" json:"country"`
}

type OpeningHours struct {
	Open  string `bson:"open" json:"open"`
	Close string `bson:"close" json:"close"`
}

// MenuItem is the canonical record of a dish at one restaurant. Name is unique per
// restaurant under case-insensitive comparison.
type MenuItem struct {
	ID           primitive.ObjectID   `bson:"_id" json:"id"`
	Name         string               `bson:"name" json:"name"`
	Description  string               `bson:"description" json:"description"`
	Price        *float64             `bson:"price,omitempty" json:"price,omitempty"`
	Category     string               `bson:"category" json:"category"`
	Images       []string             `bson:"images" json:"images"`
	Contributors []primitive.ObjectID `bson:"contributors" json:"contributors"`
	Posts        []primitive.ObjectID `bson:"posts" json:"posts"`
	Tags         []string             `bson:"tags" json:"tags"`
}

// Review is one user's rating of a restaurant. At most one per user.
type Review struct {
	UserID    primitive.ObjectID `bson:"user" json:"user_id"`
	Text      string             `bson:"text" json:"text"`
	Rating    int                `bson:"rating" json:"rating"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

type Restaurant struct {
	ID         primitive.ObjectID      `bson:"_id,omitempty" json:"id"`
	Name       string                  `bson:"name" json:"name"`
	Address    Address                 `bson:"address" json:"address"`
	Location   GeoPoint                `bson:"location" json:"location"`
	Images     []string                `bson:"images" json:"images"`
	Menu       []MenuItem              `bson:"menu" json:"menu"`
	Reviews    []Review                `bson:"reviews" json:"reviews"`
	Rating     float64                 `bson:"rating" json:"rating"`
	Cuisine    []string                `bson:"cuisine" json:"cuisine"`
	PriceRange string                  `bson:"price_range,omitempty" json:"price_range,omitempty"`
	Phone      string                  `bson:"phone,omitempty" json:"phone,omitempty"`
	Website    string                  `bson:"website,omitempty" json:"website,omitempty"`
	Hours      map[string]OpeningHours `bson:"hours,omitempty" json:"hours,omitempty"`
	CreatedBy  primitive.ObjectID      `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt  time.Time               `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time               `bson:"updated_at" json:"updated_at"`
	// Version increases on every write. Full replaces are conditional on it.
	Version int64 `bson:"version" json:"-"`
}

// RestaurantSummary is the identity subset embedded in posts and profiles.
type RestaurantSummary struct {
	ID      primitive.ObjectID `bson:"_id" json:"id"`
	Name    string             `bson:"name" json:"name"`
	Address Address            `bson:"address" json:"address"`
}

func (r *Restaurant) Summary() RestaurantSummary {
	return RestaurantSummary{ID: r.ID, Name: r.Name, Address: r.Address}
}

// FindMenuItem returns the menu item whose name matches case-insensitively.
func (r *Restaurant) FindMenuItem(name string) *MenuItem {
	name = strings.TrimSpace(name)
	for i := range r.Menu {
		if strings.EqualFold(strings.TrimSpace(r.Menu[i].Name), name) {
			return &r.Menu[i]
		}
	}
	return nil
}

// RecordDishPost folds a posted dish into the menu and reports whether a new
// item was appended. An existing item gains the image, the contributor (once)
// and the post reference; its descriptive fields are left alone.
func (r *Restaurant) RecordDishPost(dish DishSnapshot, imageURL string, userID, postID primitive.ObjectID) bool {
	if item := r.FindMenuItem(dish.Name); item != nil {
		item.Images = append(item.Images, imageURL)
		if !ContainsID(item.Contributors, userID) {
			item.Contributors = append(item.Contributors, userID)
		}
		item.Posts = append(item.Posts, postID)
		return false
	}

	r.Menu = append(r.Menu, MenuItem{
		ID:           primitive.NewObjectID(),
		Name:         dish.Name,
		Description:  dish.Description,
		Price:        dish.Price,
		Category:     DefaultMenuCategory,
		Images:       []string{imageURL},
		Contributors: []primitive.ObjectID{userID},
		Posts:        []primitive.ObjectID{postID},
		Tags:         append([]string{}, dish.Tags...),
	})
	return true
}

// MenuItemInput is an explicit menu submission.
type MenuItemInput struct {
	Name          string
	Description   string
	Price         *float64
	Category      string
	ImageURL      string
	Tags          []string
	ContributorID primitive.ObjectID
}

// UpsertMenuItem merges in into the menu by case-insensitive name. Provided
// description, price and category overwrite; image, tags and contributor are unioned.
func (r *Restaurant) UpsertMenuItem(in MenuItemInput) (*MenuItem, bool) {
	if item := r.FindMenuItem(in.Name); item != nil {
		if in.Description != "" {
			item.Description = in.Description
		}
		if in.Price != nil {
			item.Price = in.Price
		}
		if in.Category != "" {
			item.Category = in.Category
		}
		if in.ImageURL != "" && !containsString(item.Images, in.ImageURL) {
			item.Images = append(item.Images, in.ImageURL)
		}
		for _, tag := range in.Tags {
			if !containsString(item.Tags, tag) {
				item.Tags = append(item.Tags, tag)
			}
		}
		if !ContainsID(item.Contributors, in.ContributorID) {
			item.Contributors = append(item.Contributors, in.ContributorID)
		}
		return item, false
	}

	category := in.Category
	if category == "" {
		category = DefaultMenuCategory
	}
	item := MenuItem{
		ID:           primitive.NewObjectID(),
		Name:         strings.TrimSpace(in.Name),
		Description:  in.Description,
		Price:        in.Price,
		Category:     category,
		Images:       []string{},
		Contributors: []primitive.ObjectID{in.ContributorID},
		Posts:        []primitive.ObjectID{},
		Tags:         append([]string{}, in.Tags...),
	}
	if in.ImageURL != "" {
		item.Images = append(item.Images, in.ImageURL)
	}
	r.Menu = append(r.Menu, item)
	return &r.Menu[len(r.Menu)-1], true
}

// UpsertReview writes userID's review, overwriting a previous one, then
// recomputes the rating. It reports whether an existing review was replaced.
func (r *Restaurant) UpsertReview(userID primitive.ObjectID, text string, rating int, now time.Time) bool {
	replaced := false
	for i := range r.Reviews {
		if r.Reviews[i].UserID == userID {
			r.Reviews[i].Text = text
			r.Reviews[i].Rating = rating
			r.Reviews[i].CreatedAt = now
			replaced = true
			break
		}
	}
	if !replaced {
		r.Reviews = append(r.Reviews, Review{UserID: userID, Text: text, Rating: rating, CreatedAt: now})
	}
	r.RecomputeRating()
	return replaced
}

// RecomputeRating sets Rating to the mean of all review ratings, or 0 with no reviews.
func (r *Restaurant) RecomputeRating() {
	if len(r.Reviews) == 0 {
		r.Rating = 0
		return
	}
	sum := 0
	for _, rv := range r.Reviews {
		sum += rv.Rating
	}
	r.Rating = float64(sum) / float64(len(r.Reviews))
}

// AddImage appends url unless it is already present and reports whether it was added.
func (r *Restaurant) AddImage(url string) bool {
	if url == "" || containsString(r.Images, url) {
		return false
	}
	r.Images = append(r.Images, url)
	return true
}

// IsValidPriceRange reports whether s is one of PriceRanges.
func IsValidPriceRange(s string) bool {
	return containsString(PriceRanges, s)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
