package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var errNoClient = errors.New("cache: redis is not configured")

const (
	userSummaryPrefix       = "user:summary:"
	restaurantSummaryPrefix = "restaurant:summary:"
	restaurantDetailPrefix  = "restaurant:detail:"
	tokenBlacklistPrefix    = "blacklist:"
)

const (
	UserSummaryTTL       = 5 * time.Minute
	RestaurantSummaryTTL = 10 * time.Minute
)

// UserSummaryKey is keyed by the user's hex ObjectID.
func UserSummaryKey(userID string) string {
	return userSummaryPrefix + userID
}

func RestaurantSummaryKey(restaurantID string) string {
	return restaurantSummaryPrefix + restaurantID
}

// RestaurantDetailKey caches the full restaurant document.
func RestaurantDetailKey(restaurantID string) string {
	return restaurantDetailPrefix + restaurantID
}

func TokenBlacklistKey(jti string) string {
	return tokenBlacklistPrefix + jti
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID string) {
	Invalidate(ctx, UserSummaryKey(userID))
}

func InvalidateRestaurant(ctx context.Context, restaurantID string) {
	Invalidate(ctx, RestaurantSummaryKey(restaurantID), RestaurantDetailKey(restaurantID))
}

// Blacklist marks a token ID as revoked until ttl elapses.
func Blacklist(ctx context.Context, jti string, ttl time.Duration) error {
	if client == nil || jti == "" || ttl <= 0 {
		return nil
	}
	return client.Set(ctx, TokenBlacklistKey(jti), "1", ttl).Err()
}

// IsBlacklisted reports whether jti was revoked. Without a client nothing is revoked.
func IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	if client == nil || jti == "" {
		return false, nil
	}
	n, err := client.Exists(ctx, TokenBlacklistKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const wsTicketPrefix = "ws_ticket:"

// StoreTicket saves a single-use ticket for subject.
func StoreTicket(ctx context.Context, ticket, subject string, ttl time.Duration) error {
	if client == nil {
		return errNoClient
	}
	return client.Set(ctx, wsTicketPrefix+ticket, subject, ttl).Err()
}

// RedeemTicket consumes a ticket and returns its subject. ok is false when
// the ticket is unknown, expired or already used.
func RedeemTicket(ctx context.Context, ticket string) (subject string, ok bool, err error) {
	if client == nil {
		return "", false, errNoClient
	}
	subject, err = client.GetDel(ctx, wsTicketPrefix+ticket).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return subject, true, nil
}
