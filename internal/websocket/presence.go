package websocket

import (
	"context"
	"time"

	"socialhub/internal/events"
	"socialhub/internal/metrics"
	"socialhub/internal/presence"
	"socialhub/pkg/logger"

	"go.uber.org/zap"
)

// PresenceMirror receives transitions for stores outside this process.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID int64) error
	SetOffline(ctx context.Context, userID int64, at time.Time) error
}

// PresenceBroadcaster returns the registry callback that announces
// online/offline transitions to every session. mirror may be nil.
func PresenceBroadcaster(hub *Hub, mirror PresenceMirror, l *logger.Logger) presence.StatusFunc {
	log := logger.OrNop(l).Named("presence").Logger
	return func(userID int64, status string) {
		hub.EmitAll(events.EventUserStatus, events.UserStatusEvent{UserID: userID, Status: status})

		if status == presence.StatusOnline {
			metrics.OnlineUsers.Inc()
		} else {
			metrics.OnlineUsers.Dec()
		}

		if mirror == nil {
			return
		}
		// keep slow mirror writes off the connect path
		at := time.Now().UTC()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			var err error
			if status == presence.StatusOnline {
				err = mirror.SetOnline(ctx, userID)
			} else {
				err = mirror.SetOffline(ctx, userID, at)
			}
			if err != nil {
				log.Warn("presence mirror update failed", zap.Int64("user_id", userID), zap.String("status", status), zap.Error(err))
			}
		}()
	}
}
