// Package middleware provides HTTP middleware for authentication, logging,
// tracing, metrics and rate limiting.
package middleware

import (
	"context"
	"strings"

	"platefeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenVerifier resolves a bearer token to the user it was issued for.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (primitive.ObjectID, string, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// AuthRequired rejects requests without a valid token. On success it stores
// the user ID in c.Locals("userID") and the token ID in c.Locals("jti").
func AuthRequired(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization header required"))
		}
		token, ok := BearerToken(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid authorization header format"))
		}

		userID, jti, err := v.VerifyToken(c.UserContext(), token)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		c.Locals("userID", userID)
		c.Locals("jti", jti)
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID.Hex()))
		return c.Next()
	}
}

// OptionalAuth behaves like AuthRequired when a token is supplied and lets
// anonymous requests through otherwise. An invalid token is still rejected.
func OptionalAuth(v TokenVerifier) fiber.Handler {
	required := AuthRequired(v)
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		return required(c)
	}
}
