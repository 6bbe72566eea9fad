package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"platefeed/internal/models"
	"platefeed/internal/observability"

	"firebase.google.com/go/v4/messaging"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MulticastSender is the subset of *messaging.Client used for push delivery.
type MulticastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// DeviceTokenStore loads users and prunes their FCM registration tokens.
type DeviceTokenStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	RemoveDeviceTokens(ctx context.Context, userID primitive.ObjectID, tokens []string) error
}

// PushMessage is one notification shown on a user's devices.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// Pusher sends activity to the registered devices of a user through FCM.
type Pusher struct {
	sender MulticastSender
	tokens DeviceTokenStore
}

func NewPusher(sender MulticastSender, tokens DeviceTokenStore) *Pusher {
	return &Pusher{sender: sender, tokens: tokens}
}

// Send delivers msg to every device of userID and forgets tokens FCM reports
// as unregistered. A user without devices is not an error.
func (p *Pusher) Send(ctx context.Context, userID primitive.ObjectID, msg PushMessage) error {
	if p == nil || p.sender == nil {
		return nil
	}
	user, err := p.tokens.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	tokens := user.DeviceTokens
	if len(tokens) == 0 {
		return nil
	}

	resp, err := p.sender.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
		Tokens:       tokens,
	})
	if err != nil {
		observability.PushDeliveries.WithLabelValues("error").Add(float64(len(tokens)))
		return fmt.Errorf("fcm multicast: %w", err)
	}
	observability.PushDeliveries.WithLabelValues("success").Add(float64(resp.SuccessCount))
	observability.PushDeliveries.WithLabelValues("failure").Add(float64(resp.FailureCount))

	var dead []string
	for i, r := range resp.Responses {
		if r != nil && !r.Success && messaging.IsUnregistered(r.Error) && i < len(tokens) {
			dead = append(dead, tokens[i])
		}
	}
	if len(dead) > 0 {
		observability.GlobalLogger.InfoContext(ctx, "pruning unregistered device tokens",
			slog.String("user_id", userID.Hex()), slog.Int("count", len(dead)))
		return p.tokens.RemoveDeviceTokens(ctx, userID, dead)
	}
	return nil
}
