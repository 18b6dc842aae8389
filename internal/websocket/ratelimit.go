package websocket

import (
	"sync"
	"time"

	"socialhub/internal/events"
)

// RateLimits are per-session allowances per minute. Events without an
// entry are not limited here.
type RateLimits map[string]int

func DefaultRateLimits(messagesPerMinute int) RateLimits {
	return RateLimits{
		events.EventTyping:            60,
		events.EventMessageSeen:       120,
		events.EventJoinConversation:  60,
		events.EventLeaveConversation: 60,
		events.EventSendMessage:       messagesPerMinute,
	}
}

// ClientRateLimiter is a per-session token bucket refilled once a minute.
type ClientRateLimiter struct {
	limits     RateLimits
	tokens     map[string]int
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

func NewClientRateLimiter(limits RateLimits) *ClientRateLimiter {
	rl := &ClientRateLimiter{
		limits: limits,
		tokens: make(map[string]int, len(limits)),
		now:    time.Now,
	}
	rl.refillTokens()
	rl.lastRefill = rl.now()
	return rl
}

func (rl *ClientRateLimiter) Allow(event string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limit, ok := rl.limits[event]
	if !ok || limit <= 0 {
		return true
	}

	now := rl.now()
	if now.Sub(rl.lastRefill) >= time.Minute {
		rl.refillTokens()
		rl.lastRefill = now
	}

	if rl.tokens[event] > 0 {
		rl.tokens[event]--
		return true
	}
	return false
}

func (rl *ClientRateLimiter) refillTokens() {
	for event, limit := range rl.limits {
		rl.tokens[event] = limit
	}
}
