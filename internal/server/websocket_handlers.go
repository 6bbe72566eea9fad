package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"platefeed/internal/middleware"
	"platefeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WebSocketAuth authenticates an activity stream upgrade. Browsers cannot
// set headers on upgrade, so a single-use ticket from POST /api/ws/ticket is
// accepted in the query string; other clients may send a bearer token.
func (s *Server) WebSocketAuth() fiber.Handler {
	bearer := middleware.AuthRequired(s.authService)
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		ticket := c.Query("ticket")
		if ticket == "" {
			return bearer(c)
		}
		userID, err := s.authService.RedeemWSTicket(c.UserContext(), ticket)
		if err != nil {
			return respondServiceError(c, err)
		}
		c.Locals("userID", userID)
		c.SetUserContext(context.WithValue(c.UserContext(), middleware.UserIDKey, userID.Hex()))
		return c.Next()
	}
}

// WebsocketHandler streams activity events (likes, comments, follows, new
// posts) to the authenticated user.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(primitive.ObjectID)
		if !ok || userID.IsZero() {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID.Hex(), conn)
		if err != nil {
			middleware.Logger.Warn("activity stream rejected",
				slog.String("user_id", userID.Hex()),
				slog.String("error", err.Error()),
			)
			body, _ := json.Marshal(models.ErrorResponse{Error: err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, body)
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
