package redis

import (
	"context"

	"socialhub/internal/events"

	"github.com/redis/go-redis/v9"
)

// Subscriber listens to every relayed room and hands frames to handler.
type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// SubscribeRooms blocks until ctx is cancelled or the subscription fails.
func (s *Subscriber) SubscribeRooms(ctx context.Context, handler func(room string, frame []byte)) error {
	sub := s.client.PSubscribe(ctx, events.RelayChannelPrefix+"*")
	defer sub.Close()

	// wait for the subscription to be confirmed before reporting ready
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handler(events.RoomFromRelayChannel(msg.Channel), []byte(msg.Payload))
		}
	}
}
