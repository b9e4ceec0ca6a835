package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nwestbury/tickerbot/internal/domain"
)

// Bridge implements domain.Publisher by mirroring events onto Redis Pub/Sub
// channels named "<prefix>:<event>". Payloads are the same JSON envelopes sent
// to WebSocket subscribers.
type Bridge struct {
	client *Client
	prefix string
}

// NewBridge creates a Bridge over an established Client.
func NewBridge(client *Client, prefix string) *Bridge {
	if prefix == "" {
		prefix = "tickerbot"
	}
	return &Bridge{client: client, prefix: prefix}
}

// Publish sends the event to the channel for its type. Delivery is fire-and-
// forget: Redis Pub/Sub itself does not retain messages for absent consumers.
func (b *Bridge) Publish(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(map[string]any{
		"type":    event,
		"payload": payload,
	})
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", event, err)
	}

	channel := b.prefix + ":" + event
	if err := b.client.Underlying().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.Publisher = (*Bridge)(nil)
