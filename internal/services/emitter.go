package services

import (
	"context"

	"socialhub/internal/redis"
)

// Emitter delivers an event to every session joined to a room.
type Emitter interface {
	Emit(room, event string, payload any)
}

// OnlineChecker reports whether a user currently has a live session.
type OnlineChecker interface {
	IsOnline(userID int64) bool
}

// MessageLimiter throttles chat sends per user.
type MessageLimiter interface {
	AllowMessage(ctx context.Context, userID int64) (*redis.RateLimitResult, error)
}
