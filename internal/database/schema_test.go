package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestRequiredIndexes_CoverQueries(t *testing.T) {
	names := map[string]map[string]bool{}
	for _, spec := range RequiredIndexes() {
		require.NotNil(t, spec.Model.Options)
		require.NotNil(t, spec.Model.Options.Name)
		if names[spec.Collection] == nil {
			names[spec.Collection] = map[string]bool{}
		}
		name := *spec.Model.Options.Name
		assert.False(t, names[spec.Collection][name], "duplicate index %s.%s", spec.Collection, name)
		names[spec.Collection][name] = true
	}

	assert.True(t, names[UsersCollection]["username_unique"])
	assert.True(t, names[UsersCollection]["email_unique"])
	assert.True(t, names[RestaurantsCollection]["location_2dsphere"])
	assert.True(t, names[RestaurantsCollection]["restaurant_text"])
	assert.True(t, names[PostsCollection]["location_2dsphere"])
	assert.True(t, names[PostsCollection]["created_at_desc"])
}

func TestRequiredIndexes_UniqueIdentity(t *testing.T) {
	for _, spec := range RequiredIndexes() {
		if spec.Collection != UsersCollection {
			continue
		}
		keys, ok := spec.Model.Keys.(bson.D)
		require.True(t, ok)
		require.Len(t, keys, 1)
		require.NotNil(t, spec.Model.Options.Unique)
		assert.True(t, *spec.Model.Options.Unique, "%s must be unique", keys[0].Key)
	}
}

func TestRequiredIndexes_OnlyKnownCollections(t *testing.T) {
	known := map[string]bool{}
	for _, c := range PersistentCollections() {
		known[c] = true
	}
	for _, spec := range RequiredIndexes() {
		assert.True(t, known[spec.Collection], spec.Collection)
	}
}

func TestRequiredIndexes_UniqueRestaurantIdentity(t *testing.T) {
	for _, spec := range RequiredIndexes() {
		if spec.Collection != RestaurantsCollection || *spec.Model.Options.Name != "identity_unique" {
			continue
		}
		keys, ok := spec.Model.Keys.(bson.D)
		require.True(t, ok)
		require.Len(t, keys, 3)
		assert.Equal(t, []string{"name", "address.street", "address.city"}, []string{keys[0].Key, keys[1].Key, keys[2].Key})
		require.NotNil(t, spec.Model.Options.Unique)
		assert.True(t, *spec.Model.Options.Unique)
		return
	}
	t.Fatal("restaurant identity index missing")
}
