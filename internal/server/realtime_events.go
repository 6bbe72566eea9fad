package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"platefeed/internal/featureflags"
	"platefeed/internal/middleware"
	"platefeed/internal/models"
	"platefeed/internal/notifications"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event type constants prevent typos in event names.
const (
	EventPostCreated   = "post_created"
	EventPostLiked     = "post_liked"
	EventPostCommented = "post_commented"
	EventUserFollowed  = "user_followed"
)

const pushTimeout = 10 * time.Second

func encodeEvent(eventType string, payload map[string]any) (string, bool) {
	eventJSON, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		middleware.Logger.Error("failed to marshal event", slog.String("type", eventType), slog.String("error", err.Error()))
		return "", false
	}
	return string(eventJSON), true
}

// publishUserEvent delivers an event to every activity stream of userID.
// With Redis it goes through pub/sub so all instances see it; otherwise it
// goes straight to this instance's hub.
func (s *Server) publishUserEvent(ctx context.Context, userID primitive.ObjectID, eventType string, payload map[string]any) {
	message, ok := encodeEvent(eventType, payload)
	if !ok {
		return
	}
	if s.notifier.Enabled() {
		if err := s.notifier.PublishUser(ctx, userID.Hex(), message); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish user event",
				slog.String("type", eventType),
				slog.String("user_id", userID.Hex()),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	s.hub.Broadcast(userID.Hex(), message)
}

func (s *Server) publishBroadcastEvent(ctx context.Context, eventType string, payload map[string]any) {
	message, ok := encodeEvent(eventType, payload)
	if !ok {
		return
	}
	if s.notifier.Enabled() {
		if err := s.notifier.PublishBroadcast(ctx, message); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish broadcast event",
				slog.String("type", eventType),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	s.hub.BroadcastAll(message)
}

// notifyUser publishes a user event and, when push is enabled for the
// recipient, mirrors it to their devices. Actions on one's own content are
// not notified.
func (s *Server) notifyUser(ctx context.Context, recipient, actor primitive.ObjectID, eventType string, payload map[string]any, push notifications.PushMessage) {
	if recipient == actor {
		return
	}
	s.publishUserEvent(ctx, recipient, eventType, payload)

	if s.pusher == nil || !s.featureFlags.Enabled(featureflags.PushNotifications, recipient.Hex()) {
		return
	}
	push.Data = map[string]string{"type": eventType}
	go func() {
		pctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := s.pusher.Send(pctx, recipient, push); err != nil {
			middleware.Logger.Warn("push delivery failed",
				slog.String("type", eventType),
				slog.String("user_id", recipient.Hex()),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func userSummary(user *models.UserSummary) map[string]any {
	if user == nil {
		return nil
	}
	return map[string]any{
		"id":              user.ID,
		"username":        user.Username,
		"profile_picture": user.ProfilePicture,
	}
}

// actorSummary resolves the acting user for event payloads. Lookup failures
// degrade to an ID-only summary.
func (s *Server) actorSummary(ctx context.Context, id primitive.ObjectID) *models.UserSummary {
	user, err := s.authService.Me(ctx, id)
	if err != nil {
		return &models.UserSummary{ID: id}
	}
	return &models.UserSummary{ID: user.ID, Username: user.Username, ProfilePicture: user.ProfilePicture}
}

func displayName(u *models.UserSummary) string {
	if u == nil || u.Username == "" {
		return "Someone"
	}
	return u.Username
}
