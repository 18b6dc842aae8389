package redis

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	presenceOnlineSet  = "presence:online"
	presenceLastSeenAt = "presence:last_seen:"
)

// PresenceMirror copies local online/offline transitions into Redis so
// collaborators outside this process can read who is reachable.
type PresenceMirror struct {
	client      *goredis.Client
	lastSeenTTL time.Duration
}

func NewPresenceMirror(client *goredis.Client, lastSeenTTL time.Duration) *PresenceMirror {
	if lastSeenTTL == 0 {
		lastSeenTTL = 24 * time.Hour
	}
	return &PresenceMirror{client: client, lastSeenTTL: lastSeenTTL}
}

func LastSeenKey(userID int64) string {
	return presenceLastSeenAt + strconv.FormatInt(userID, 10)
}

func (p *PresenceMirror) SetOnline(ctx context.Context, userID int64) error {
	return p.client.SAdd(ctx, presenceOnlineSet, userID).Err()
}

func (p *PresenceMirror) SetOffline(ctx context.Context, userID int64, at time.Time) error {
	pipe := p.client.Pipeline()
	pipe.SRem(ctx, presenceOnlineSet, userID)
	pipe.Set(ctx, LastSeenKey(userID), at.Unix(), p.lastSeenTTL)
	_, err := pipe.Exec(ctx)
	return err
}
