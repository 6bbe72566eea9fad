package database

// Collection names.
const (
	UsersCollection       = "users"
	RestaurantsCollection = "restaurants"
	PostsCollection       = "posts"
)

// PersistentCollections returns every collection the application owns.
func PersistentCollections() []string {
	return []string{UsersCollection, RestaurantsCollection, PostsCollection}
}
