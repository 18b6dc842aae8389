package websocket

import (
	"context"
	"encoding/json"

	"socialhub/internal/events"
	"socialhub/pkg/logger"

	"go.uber.org/zap"
)

// RoomSubscriber streams relayed room frames.
type RoomSubscriber interface {
	SubscribeRooms(ctx context.Context, handler func(room string, frame []byte)) error
}

// RedisBridge delivers frames published by any node to the local sessions.
type RedisBridge struct {
	subscriber RoomSubscriber
	hub        *Hub
	log        *logger.Logger
}

func NewRedisBridge(subscriber RoomSubscriber, hub *Hub, l *logger.Logger) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub, log: logger.OrNop(l).Named("relay")}
}

func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.SubscribeRooms(ctx, b.deliver)
}

func (b *RedisBridge) deliver(room string, payload []byte) {
	var rf events.RelayFrame
	if err := json.Unmarshal(payload, &rf); err != nil || len(rf.Frame) == 0 {
		b.log.Logger.Warn("dropping malformed relay frame", zap.String("room", room), zap.Error(err))
		return
	}
	b.hub.DeliverLocal(room, rf.Except, rf.Frame)
}
