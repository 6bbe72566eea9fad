package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restaurantBody(name string) map[string]any {
	return map[string]any{
		"name":        name,
		"street":      "1 Mott St",
		"city":        "New York",
		"latitude":    40.7141,
		"longitude":   -73.9983,
		"cuisine":     "Chinese, Noodles",
		"price_range": "$$",
	}
}

func TestCreateRestaurant(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "owner")

	status, body := env.call(t, http.MethodPost, "/api/restaurants", token, restaurantBody("Great Noodle"))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Great Noodle", body["name"])
	assert.Equal(t, []any{"Chinese", "Noodles"}, body["cuisine"])

	t.Run("same identity conflicts with the existing record", func(t *testing.T) {
		status, dup := env.call(t, http.MethodPost, "/api/restaurants", token, restaurantBody("great noodle"))
		assert.Equal(t, http.StatusConflict, status)
		existing, ok := dup["existing"].(map[string]any)
		require.True(t, ok, dup)
		assert.Equal(t, body["id"], existing["id"])
	})

	t.Run("invalid price range", func(t *testing.T) {
		req := restaurantBody("Pricey")
		req["price_range"] = "$$$$$"
		status, _ := env.call(t, http.MethodPost, "/api/restaurants", token, req)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("requires authentication", func(t *testing.T) {
		status, _ := env.call(t, http.MethodPost, "/api/restaurants", "", restaurantBody("Anon"))
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestResolveRestaurant(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "owner")

	status, first := env.call(t, http.MethodPost, "/api/restaurants/resolve", token, restaurantBody("Corner Cafe"))
	require.Equal(t, http.StatusCreated, status, first)
	assert.Equal(t, true, first["created"])

	status, second := env.call(t, http.MethodPost, "/api/restaurants/resolve", token, restaurantBody("Corner Cafe"))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, second["created"])
	assert.Equal(t,
		first["data"].(map[string]any)["id"],
		second["data"].(map[string]any)["id"])
}

func TestGetRestaurantDetail(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "taster")
	restaurant := env.restaurants.Seed("Noodle Bar", 40.7128, -74.0060)
	env.createPost(t, token, restaurant, "Ramen")

	status, body := env.call(t, http.MethodGet, "/api/restaurants/"+restaurant.ID.Hex(), "", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Noodle Bar", body["restaurant"].(map[string]any)["name"])
	assert.Len(t, body["recent_posts"], 1)

	status, body = env.call(t, http.MethodGet, "/api/restaurants/"+restaurant.ID.Hex()+"/posts", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)
}

func TestGetNearbyRestaurants(t *testing.T) {
	env := newTestEnv(t)
	env.restaurants.Seed("Downtown", 40.7128, -74.0060)
	env.restaurants.Seed("Boston", 42.3601, -71.0589)

	status, body := env.call(t, http.MethodGet, "/api/restaurants/nearby?latitude=40.71&longitude=-74.0&radius=10", "", nil)
	require.Equal(t, http.StatusOK, status, body)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "Downtown", data[0].(map[string]any)["name"])
}

func TestSearchRestaurants(t *testing.T) {
	env := newTestEnv(t)
	env.restaurants.Seed("Sushi Palace", 1, 1)
	env.restaurants.Seed("Taco Stand", 1, 1)

	status, body := env.call(t, http.MethodGet, "/api/restaurants/search?q=sushi", "", nil)
	require.Equal(t, http.StatusOK, status, body)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "Sushi Palace", data[0].(map[string]any)["name"])
}

func TestUpdateRestaurant(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "editor")
	restaurant := env.restaurants.Seed("Old Name", 1, 1)

	status, body := env.call(t, http.MethodPut, "/api/restaurants/"+restaurant.ID.Hex(), token, map[string]any{
		"name":  "New Name",
		"phone": "555-0100",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "New Name", body["name"])
	assert.Equal(t, "555-0100", body["phone"])
}

func TestAddMenuItemAndReview(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.register(t, "critic")
	restaurant := env.restaurants.Seed("Bistro", 1, 1)
	base := "/api/restaurants/" + restaurant.ID.Hex()

	status, body := env.call(t, http.MethodPost, base+"/menu", token, map[string]any{
		"name":     "Steak Frites",
		"price":    24.5,
		"category": "Mains",
	})
	require.Equal(t, http.StatusOK, status, body)
	menu := body["menu"].([]any)
	require.Len(t, menu, 1)
	assert.Equal(t, "Steak Frites", menu[0].(map[string]any)["name"])

	status, body = env.call(t, http.MethodPost, base+"/reviews", token, map[string]any{"text": "Lovely", "rating": 4})
	require.Equal(t, http.StatusOK, status, body)
	assert.InDelta(t, 4.0, body["rating"], 1e-9)

	status, body = env.call(t, http.MethodPost, base+"/reviews", token, map[string]any{"text": "Even better", "rating": 5})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["reviews"], 1)
	assert.InDelta(t, 5.0, body["rating"], 1e-9)

	status, _ = env.call(t, http.MethodPost, base+"/reviews", token, map[string]any{"text": "Off scale", "rating": 9})
	assert.Equal(t, http.StatusBadRequest, status)
}
