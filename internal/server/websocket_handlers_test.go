package server

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueWSTicket(t *testing.T) {
	t.Run("requires redis", func(t *testing.T) {
		env := newTestEnv(t)
		token, _ := env.register(t, "nocache")
		status, _ := env.call(t, http.MethodPost, "/api/ws/ticket", token, nil)
		assert.Equal(t, http.StatusInternalServerError, status)
	})

	t.Run("stores a short lived ticket", func(t *testing.T) {
		mr, _ := useMiniredis(t)
		env := newTestEnv(t)
		token, userID := env.register(t, "streamer")

		status, body := env.call(t, http.MethodPost, "/api/ws/ticket", token, nil)
		require.Equal(t, http.StatusOK, status, body)
		ticket := body["ticket"].(string)
		assert.EqualValues(t, 30, body["expires_in"])

		var key string
		for _, k := range mr.Keys() {
			if strings.HasSuffix(k, ticket) {
				key = k
			}
		}
		require.NotEmpty(t, key, "ticket not stored")
		stored, err := mr.Get(key)
		require.NoError(t, err)
		assert.Equal(t, userID, stored)
		assert.Positive(t, mr.TTL(key))
	})
}

func TestWebSocketAuth_RequiresUpgrade(t *testing.T) {
	env := newTestEnv(t)
	status, _ := env.call(t, http.MethodGet, "/api/ws", "", nil)
	assert.Equal(t, fiber.StatusUpgradeRequired, status)
}

func TestActivityStream_DeliversLikeToAuthor(t *testing.T) {
	useMiniredis(t)
	env := newTestEnv(t)
	authorToken, authorID := env.register(t, "author")
	fanToken, _ := env.register(t, "fan")
	restaurant := env.restaurants.Seed("Noodle Bar", 40.7128, -74.0060)
	post := env.createPost(t, authorToken, restaurant, "Ramen")

	status, body := env.call(t, http.MethodPost, "/api/ws/ticket", authorToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	ticket := body["ticket"].(string)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = env.app.Listener(ln) }()
	t.Cleanup(func() { _ = env.app.Shutdown() })
	addr := ln.Addr().String()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/ws?ticket="+ticket, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return env.server.hub.IsOnline(authorID) }, 2*time.Second, 10*time.Millisecond)

	t.Run("ticket is single use", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/ws?ticket="+ticket, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	req, err := http.NewRequest(http.MethodPut, "http://"+addr+"/api/posts/"+post["id"].(string)+"/like", bytes.NewReader(nil))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+fanToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, EventPostLiked, event.Type)
	assert.Equal(t, post["id"], event.Payload["post_id"])
	assert.Equal(t, "fan", event.Payload["user"].(map[string]any)["username"])
}
