package redis

import (
	"context"

	"socialhub/internal/events"

	"github.com/redis/go-redis/v9"
)

// Publisher pushes encoded room frames onto the cross-node relay.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishRoom publishes an already encoded frame for room.
func (p *Publisher) PublishRoom(ctx context.Context, room string, frame []byte) error {
	return p.client.Publish(ctx, events.RelayChannel(room), frame).Err()
}
