package websocket

import (
	"context"

	"socialhub/internal/events"
	"socialhub/internal/proxy"
	socialhub_errors "socialhub/pkg/errors"
)

// RoomAuthorizer decides which rooms a user may join
type RoomAuthorizer struct {
	access *proxy.AccessControl
}

func NewRoomAuthorizer(access *proxy.AccessControl) *RoomAuthorizer {
	return &RoomAuthorizer{access: access}
}

// CanJoin returns nil when userID may join room. Membership is read from
// storage on every call.
func (a *RoomAuthorizer) CanJoin(ctx context.Context, userID int64, room string) error {
	// User's own room - always allowed
	if room == events.UserRoom(userID) {
		return nil
	}

	// Conversation rooms - persisted members only
	if convID, ok := events.ParseConversationRoom(room); ok {
		return a.access.CanJoinRoom(ctx, userID, convID)
	}

	// Default deny
	return socialhub_errors.ErrForbidden
}
