// Package testutil provides shared test doubles and fixtures.
package testutil

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"platefeed/internal/models"
	"platefeed/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// clone round-trips v through BSON so callers never share memory with the store,
// matching what a real driver hands back.
func clone[T any](v *T) *T {
	raw, err := bson.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := bson.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return &out
}

func paginate[T any](items []T, page models.PageRequest) []T {
	start := int(page.Skip())
	if start >= len(items) {
		return []T{}
	}
	end := min(start+page.Limit, len(items))
	return items[start:end]
}

// distanceMeters is the haversine distance between two GeoJSON points.
func distanceMeters(a, b models.GeoPoint) float64 {
	const earthRadius = 6378100.0
	lat1, lat2 := a.Latitude()*math.Pi/180, b.Latitude()*math.Pi/180
	dLat := lat2 - lat1
	dLng := (b.Longitude() - a.Longitude()) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(h))
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// UserStore is an in-memory repository.UserRepository.
type UserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
	order []primitive.ObjectID
}

var _ repository.UserRepository = (*UserStore)(nil)

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[primitive.ObjectID]*models.User)}
}

// Seed inserts a user with the given username and returns it.
func (s *UserStore) Seed(username string) *models.User {
	u := &models.User{Username: username, Email: username + "@example.com"}
	if err := s.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (s *UserStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.NewNotFoundError("User", id.Hex())
	}
	return clone(u), nil
}

func (s *UserStore) find(match func(*models.User) bool) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		if match(s.users[id]) {
			return clone(s.users[id])
		}
	}
	return nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email == email }), nil
}

func (s *UserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Username == username }), nil
}

func (s *UserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return models.NewConflictError("User already exists", nil)
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Followers == nil {
		user.Followers = []primitive.ObjectID{}
	}
	if user.Following == nil {
		user.Following = []primitive.ObjectID{}
	}
	if user.FavoriteRestaurants == nil {
		user.FavoriteRestaurants = []primitive.ObjectID{}
	}
	s.users[user.ID] = clone(user)
	s.order = append(s.order, user.ID)
	return nil
}

func (s *UserStore) UpdateProfile(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[user.ID]
	if !ok {
		return models.NewNotFoundError("User", user.ID.Hex())
	}
	for id, u := range s.users {
		if id != user.ID && (u.Username == user.Username || u.Email == user.Email) {
			return models.NewConflictError("Username or email already in use", nil)
		}
	}
	cur.Username, cur.Email, cur.Bio, cur.ProfilePicture = user.Username, user.Email, user.Bio, user.ProfilePicture
	cur.UpdatedAt = user.UpdatedAt
	return nil
}

func (s *UserStore) Summaries(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[primitive.ObjectID]models.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u.Summary()
		}
	}
	return out, nil
}

func addID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	if models.ContainsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// SetFollow updates both users under one lock, like the transactional store.
func (s *UserStore) SetFollow(_ context.Context, followerID, targetID primitive.ObjectID, follow bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	follower, ok := s.users[followerID]
	if !ok {
		return models.NewNotFoundError("User", followerID.Hex())
	}
	target, ok := s.users[targetID]
	if !ok {
		return models.NewNotFoundError("User", targetID.Hex())
	}
	if follow {
		follower.Following = addID(follower.Following, targetID)
		target.Followers = addID(target.Followers, followerID)
	} else {
		follower.Following = removeID(follower.Following, targetID)
		target.Followers = removeID(target.Followers, followerID)
	}
	return nil
}

func (s *UserStore) SetFavorite(_ context.Context, userID, restaurantID primitive.ObjectID, favorite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.NewNotFoundError("User", userID.Hex())
	}
	if favorite {
		u.FavoriteRestaurants = addID(u.FavoriteRestaurants, restaurantID)
	} else {
		u.FavoriteRestaurants = removeID(u.FavoriteRestaurants, restaurantID)
	}
	return nil
}

func (s *UserStore) Search(_ context.Context, query string, page models.PageRequest) ([]models.UserSummary, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.UserSummary
	for _, id := range s.order {
		u := s.users[id]
		if containsFold(u.Username, query) || containsFold(u.Email, query) {
			matched = append(matched, u.Summary())
		}
	}
	return paginate(matched, page), int64(len(matched)), nil
}

func (s *UserStore) AddDeviceToken(_ context.Context, userID primitive.ObjectID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.NewNotFoundError("User", userID.Hex())
	}
	for _, t := range u.DeviceTokens {
		if t == token {
			return nil
		}
	}
	u.DeviceTokens = append(u.DeviceTokens, token)
	return nil
}

func (s *UserStore) RemoveDeviceTokens(_ context.Context, userID primitive.ObjectID, tokens []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil
	}
	kept := u.DeviceTokens[:0]
	for _, t := range u.DeviceTokens {
		drop := false
		for _, r := range tokens {
			if r == t {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, t)
		}
	}
	u.DeviceTokens = kept
	return nil
}

// RestaurantStore is an in-memory repository.RestaurantRepository.
type RestaurantStore struct {
	mu          sync.Mutex
	restaurants map[primitive.ObjectID]*models.Restaurant
	// Replaces counts full-document writes.
	Replaces int
	// BeforeCreate and BeforeReplace run once, ahead of the next Create or
	// Replace, so tests can slip in a competing writer.
	BeforeCreate  func()
	BeforeReplace func()
	// DetachErr, when set, fails DetachPost.
	DetachErr error
}

func (s *RestaurantStore) takeHook(hook *func()) {
	s.mu.Lock()
	fn := *hook
	*hook = nil
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

var _ repository.RestaurantRepository = (*RestaurantStore)(nil)

func NewRestaurantStore() *RestaurantStore {
	return &RestaurantStore{restaurants: make(map[primitive.ObjectID]*models.Restaurant)}
}

// Seed inserts a restaurant at lat, lng and returns it.
func (s *RestaurantStore) Seed(name string, lat, lng float64) *models.Restaurant {
	r := &models.Restaurant{
		Name:     name,
		Address:  models.Address{Street: "1 Main St", City: "Springfield"},
		Location: models.NewGeoPoint(lat, lng),
	}
	if err := s.Create(context.Background(), r); err != nil {
		panic(err)
	}
	return r
}

func (s *RestaurantStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.restaurants[id]
	if !ok {
		return nil, models.NewNotFoundError("Restaurant", id.Hex())
	}
	return clone(r), nil
}

func (s *RestaurantStore) FindByIdentity(_ context.Context, name, street, city string) (*models.Restaurant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.byIdentity(name, street, city); r != nil {
		return clone(r), nil
	}
	return nil, nil
}

func (s *RestaurantStore) byIdentity(name, street, city string) *models.Restaurant {
	for _, r := range s.restaurants {
		if r.Name == name && r.Address.Street == street && r.Address.City == city {
			return r
		}
	}
	return nil
}

func (s *RestaurantStore) Create(_ context.Context, r *models.Restaurant) error {
	s.takeHook(&s.BeforeCreate)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.byIdentity(r.Name, r.Address.Street, r.Address.City); existing != nil {
		return models.NewConflictError("Restaurant already exists", clone(existing))
	}
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
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
	s.restaurants[r.ID] = clone(r)
	return nil
}

func (s *RestaurantStore) Replace(_ context.Context, r *models.Restaurant) error {
	s.takeHook(&s.BeforeReplace)
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.restaurants[r.ID]
	if !ok {
		return models.NewNotFoundError("Restaurant", r.ID.Hex())
	}
	if stored.Version != r.Version {
		return repository.ErrStaleRestaurant
	}
	if other := s.byIdentity(r.Name, r.Address.Street, r.Address.City); other != nil && other.ID != r.ID {
		return models.NewConflictError("Restaurant already exists", clone(other))
	}
	r.Version++
	s.restaurants[r.ID] = clone(r)
	s.Replaces++
	return nil
}

func (s *RestaurantStore) all(match func(*models.Restaurant) bool) []models.Restaurant {
	var out []models.Restaurant
	for _, r := range s.restaurants {
		if match(r) {
			out = append(out, *clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out
}

func (s *RestaurantStore) List(_ context.Context, page models.PageRequest) ([]models.Restaurant, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.all(func(*models.Restaurant) bool { return true })
	return paginate(all, page), int64(len(all)), nil
}

func (s *RestaurantStore) Nearby(_ context.Context, point models.GeoPoint, radiusMeters float64, page models.PageRequest) ([]models.Restaurant, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.all(func(r *models.Restaurant) bool { return distanceMeters(point, r.Location) <= radiusMeters })
	return paginate(all, page), int64(len(all)), nil
}

// Search approximates the text index with substring matches, ranking name
// hits above menu and cuisine hits.
func (s *RestaurantStore) Search(_ context.Context, query string, page models.PageRequest) ([]models.Restaurant, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score := func(r *models.Restaurant) int {
		n := 0
		if containsFold(r.Name, query) {
			n += 2
		}
		for _, m := range r.Menu {
			if containsFold(m.Name, query) {
				n++
			}
		}
		for _, c := range r.Cuisine {
			if containsFold(c, query) {
				n++
			}
		}
		return n
	}
	all := s.all(func(r *models.Restaurant) bool { return score(r) > 0 })
	sort.SliceStable(all, func(i, j int) bool { return score(&all[i]) > score(&all[j]) })
	return paginate(all, page), int64(len(all)), nil
}

func (s *RestaurantStore) Summaries(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.RestaurantSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[primitive.ObjectID]models.RestaurantSummary, len(ids))
	for _, id := range ids {
		if r, ok := s.restaurants[id]; ok {
			out[id] = r.Summary()
		}
	}
	return out, nil
}

func (s *RestaurantStore) DetachPost(_ context.Context, restaurantID, postID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DetachErr != nil {
		return s.DetachErr
	}
	r, ok := s.restaurants[restaurantID]
	if !ok {
		return nil
	}
	for i := range r.Menu {
		r.Menu[i].Posts = removeID(r.Menu[i].Posts, postID)
	}
	r.Version++
	return nil
}

// PostStore is an in-memory repository.PostRepository.
type PostStore struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]*models.Post
	// CreateErr, when set, fails the next Create.
	CreateErr error
}

var _ repository.PostRepository = (*PostStore)(nil)

func NewPostStore() *PostStore {
	return &PostStore{posts: make(map[primitive.ObjectID]*models.Post)}
}

func (s *PostStore) Create(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		err := s.CreateErr
		s.CreateErr = nil
		return err
	}
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if post.Likes == nil {
		post.Likes = []primitive.ObjectID{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	s.posts[post.ID] = clone(post)
	return nil
}

// Len reports how many posts are stored.
func (s *PostStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

func (s *PostStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, models.NewNotFoundError("Post", id.Hex())
	}
	return clone(p), nil
}

func (s *PostStore) List(_ context.Context, q repository.PostQuery, page models.PageRequest) ([]models.Post, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Post
	for _, p := range s.posts {
		if q.Authors != nil && !models.ContainsID(q.Authors, p.UserID) {
			continue
		}
		if !q.Restaurant.IsZero() && p.RestaurantID != q.Restaurant {
			continue
		}
		if q.Near != nil && distanceMeters(q.Near.Point, p.Location) > q.Near.RadiusMeters {
			continue
		}
		out = append(out, *clone(p))
	}
	if q.Near != nil && q.Near.ByDistance {
		sort.SliceStable(out, func(i, j int) bool {
			return distanceMeters(q.Near.Point, out[i].Location) < distanceMeters(q.Near.Point, out[j].Location)
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return out[i].ID.Hex() > out[j].ID.Hex()
		})
	}
	return paginate(out, page), int64(len(out)), nil
}

func (s *PostStore) SetLike(_ context.Context, postID, userID primitive.ObjectID, like bool) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return nil, models.NewNotFoundError("Post", postID.Hex())
	}
	if like {
		p.Likes = addID(p.Likes, userID)
	} else {
		p.Likes = removeID(p.Likes, userID)
	}
	return clone(p), nil
}

func (s *PostStore) AddComment(_ context.Context, postID primitive.ObjectID, comment models.Comment) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[postID]
	if !ok {
		return nil, models.NewNotFoundError("Post", postID.Hex())
	}
	p.Comments = append(p.Comments, comment)
	return clone(p), nil
}

func (s *PostStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return models.NewNotFoundError("Post", id.Hex())
	}
	delete(s.posts, id)
	return nil
}
