package notifications

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterEnforcesPerUserLimit(t *testing.T) {
	hub := NewHub()
	var clients []*Client
	for i := 0; i < maxConnsPerUser; i++ {
		c, err := hub.Register("u1", nil)
		require.NoError(t, err)
		clients = append(clients, c)
	}
	_, err := hub.Register("u1", nil)
	assert.ErrorIs(t, err, ErrUserFull)

	_, err = hub.Register("u2", nil)
	assert.NoError(t, err)

	hub.UnregisterClient(clients[0], "test")
	hub.UnregisterClient(clients[0], "test")
	_, err = hub.Register("u1", nil)
	assert.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.False(t, hub.IsOnline("u1"))
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register("u1", nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer+5; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBuffer)

	hub.UnregisterClient(c, "test")
	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}

// startActivityServer serves a websocket route that registers every
// connection under userID.
func startActivityServer(t *testing.T, hub *Hub, userID string) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", fiberws.New(func(conn *fiberws.Conn) {
		client, err := hub.Register(userID, conn)
		if err != nil {
			return
		}
		go client.WritePump()
		client.ReadPump()
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "ws://" + ln.Addr().String() + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, testEventuallyTimeout, testPollInterval)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testEventuallyTimeout)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestHub_DeliversToConnectedUser(t *testing.T) {
	hub := NewHub()
	conn := dial(t, startActivityServer(t, hub, "u1"))
	require.Eventually(t, func() bool { return hub.IsOnline("u1") }, testEventuallyTimeout, testPollInterval)

	hub.Broadcast("u1", `{"type":"post_liked"}`)
	assert.Equal(t, `{"type":"post_liked"}`, readText(t, conn))

	hub.Broadcast("someone-else", `{"type":"ignored"}`)
	hub.BroadcastAll(`{"type":"post_created"}`)
	assert.Equal(t, `{"type":"post_created"}`, readText(t, conn))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return !hub.IsOnline("u1") }, testEventuallyTimeout, testPollInterval)
}

func TestHub_WiringForwardsRedisMessages(t *testing.T) {
	hub := NewHub()
	n := NewNotifier(newTestRedis(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))

	conn := dial(t, startActivityServer(t, hub, "u1"))
	require.Eventually(t, func() bool { return hub.IsOnline("u1") }, testEventuallyTimeout, testPollInterval)

	require.NoError(t, n.PublishUser(context.Background(), "u1", `{"type":"user_followed"}`))
	assert.Equal(t, `{"type":"user_followed"}`, readText(t, conn))
}
