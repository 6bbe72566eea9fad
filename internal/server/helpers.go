package server

import (
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"unicode"

	"platefeed/internal/middleware"
	"platefeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// mapServiceError picks the HTTP status for an error returned by a service.
func mapServiceError(err error) int {
	switch models.ErrorCode(err) {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// respondServiceError writes err with its mapped status. Internal failures
// are logged and reported without their cause.
func respondServiceError(c *fiber.Ctx, err error) error {
	status := mapServiceError(err)
	if status == fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
		if models.ErrorCode(err) == "" {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err)
}

func badRequest(c *fiber.Ctx, message string) error {
	return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(message))
}

// parsePage reads the 1-based page and limit query parameters.
func parsePage(c *fiber.Ctx) models.PageRequest {
	return models.NewPageRequest(c.QueryInt("page", 1), c.QueryInt("limit", models.DefaultPageLimit))
}

// parseObjectID extracts a route parameter by name as an ObjectID.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseObjectID(c *fiber.Ctx, param string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Params(param))
	if err != nil {
		_ = badRequest(c, "Invalid "+humanizeParam(param))
		return primitive.NilObjectID, errResponseWritten
	}
	return id, nil
}

// parseBodyID parses an optional ObjectID carried in a request body.
// The empty string yields the zero ID.
func parseBodyID(raw string) (primitive.ObjectID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return primitive.NilObjectID, true
	}
	id, err := primitive.ObjectIDFromHex(raw)
	return id, err == nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "restaurantId" -> "restaurant ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// queryFloat parses an optional float query parameter. A missing value
// yields nil; a malformed one is an error.
func queryFloat(c *fiber.Ctx, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, models.NewValidationError("Invalid " + key)
	}
	return &v, nil
}

// parseGeoQuery reads latitude, longitude and radius (km) from the query string.
func parseGeoQuery(c *fiber.Ctx) (models.Coordinates, float64, error) {
	lat, err := queryFloat(c, "latitude")
	if err != nil {
		return models.Coordinates{}, 0, err
	}
	lng, err := queryFloat(c, "longitude")
	if err != nil {
		return models.Coordinates{}, 0, err
	}
	radius, err := queryFloat(c, "radius")
	if err != nil {
		return models.Coordinates{}, 0, err
	}
	coords := models.Coordinates{Latitude: lat, Longitude: lng}
	if radius == nil {
		return coords, 0, nil
	}
	return coords, *radius, nil
}

// currentUserID returns the authenticated user set by AuthRequired.
func currentUserID(c *fiber.Ctx) primitive.ObjectID {
	id, _ := c.Locals("userID").(primitive.ObjectID)
	return id
}

// viewerID returns the authenticated user when OptionalAuth found one.
func viewerID(c *fiber.Ctx) (primitive.ObjectID, bool) {
	id, ok := c.Locals("userID").(primitive.ObjectID)
	return id, ok && !id.IsZero()
}
