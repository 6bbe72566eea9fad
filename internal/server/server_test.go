package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"platefeed/internal/cache"
	"platefeed/internal/config"
	"platefeed/internal/featureflags"
	"platefeed/internal/models"
	"platefeed/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const testPassword = "Plate-feed-2024!"

type testEnv struct {
	server      *Server
	app         *fiber.App
	users       *testutil.UserStore
	restaurants *testutil.RestaurantStore
	posts       *testutil.PostStore
	media       *testutil.MediaStub
}

type pingerMock struct {
	mock.Mock
}

func (m *pingerMock) Ping(ctx context.Context, rp *readpref.ReadPref) error {
	return m.Called(ctx, rp).Error(0)
}

func newTestEnv(t *testing.T, deps ...func(*Deps)) *testEnv {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	env := &testEnv{
		users:       testutil.NewUserStore(),
		restaurants: testutil.NewRestaurantStore(),
		posts:       testutil.NewPostStore(),
		media:       &testutil.MediaStub{},
	}
	cfg := &config.Config{
		JWTSecret:        "test-secret-for-platefeed-handlers",
		JWTTTLHours:      24,
		MediaMaxUploadMB: 5,
		AllowedOrigins:   "http://localhost:5173",
		StorageDriver:    config.StorageLocal,
	}
	d := Deps{
		Users:       env.users,
		Restaurants: env.restaurants,
		Posts:       env.posts,
		Media:       env.media,
	}
	for _, fn := range deps {
		fn(&d)
	}
	env.server = NewServer(cfg, featureflags.NewManager(""), d)
	env.app = env.server.NewApp()
	return env
}

// useMiniredis points the cache package at a fresh miniredis instance.
func useMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})
	return mr, rdb
}

// call performs a request against the app and decodes a JSON object body.
func (e *testEnv) call(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// register signs up username and returns its token and ID.
func (e *testEnv) register(t *testing.T, username string) (string, string) {
	t.Helper()
	status, body := e.call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": testPassword,
	})
	require.Equal(t, http.StatusCreated, status, body)
	user := body["user"].(map[string]any)
	return body["token"].(string), user["id"].(string)
}

func (e *testEnv) createPost(t *testing.T, token string, restaurant *models.Restaurant, dish string) map[string]any {
	t.Helper()
	status, body := e.call(t, http.MethodPost, "/api/posts", token, map[string]any{
		"restaurant_id": restaurant.ID.Hex(),
		"dish_name":     dish,
		"dish_image":    "data:image/png;base64,iVBORw0KGgo=",
		"tags":          "spicy, ,noodles",
		"latitude":      restaurant.Location.Latitude(),
		"longitude":     restaurant.Location.Longitude(),
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body
}

func TestLivenessCheck(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.call(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "up", body["status"])
}

func TestReadinessCheck(t *testing.T) {
	t.Run("store up without redis is degraded", func(t *testing.T) {
		pinger := &pingerMock{}
		pinger.On("Ping", mock.Anything, mock.Anything).Return(nil)
		env := newTestEnv(t, func(d *Deps) { d.Store = pinger })

		status, body := env.call(t, http.MethodGet, "/health/ready", "", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "degraded", body["status"])
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "unavailable", checks["redis"])
		pinger.AssertExpectations(t)
	})

	t.Run("store and redis up is healthy", func(t *testing.T) {
		_, rdb := useMiniredis(t)
		pinger := &pingerMock{}
		pinger.On("Ping", mock.Anything, mock.Anything).Return(nil)
		env := newTestEnv(t, func(d *Deps) { d.Store = pinger; d.Redis = rdb })

		status, body := env.call(t, http.MethodGet, "/health/ready", "", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("store down is unavailable", func(t *testing.T) {
		pinger := &pingerMock{}
		pinger.On("Ping", mock.Anything, mock.Anything).Return(errors.New("no primary"))
		env := newTestEnv(t, func(d *Deps) { d.Store = pinger })

		status, body := env.call(t, http.MethodGet, "/health/ready", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "unhealthy", body["status"])
	})
}

func TestGetFeatureFlags(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.call(t, http.MethodGet, "/api/feature-flags", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "raw")
	assert.Contains(t, body, "evaluated")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}
