package redis

import (
	"testing"
	"time"
)

func TestRateLimitKeys(t *testing.T) {
	if got := MessageKey(42); got != "ratelimit:42:messages" {
		t.Fatalf("MessageKey = %q", got)
	}
	if got := HandshakeKey("10.0.0.1"); got != "ratelimit:10.0.0.1:handshake" {
		t.Fatalf("HandshakeKey = %q", got)
	}
	if got := LastSeenKey(9); got != "presence:last_seen:9" {
		t.Fatalf("LastSeenKey = %q", got)
	}
}

func TestParseLimitResult(t *testing.T) {
	res, err := parseLimitResult([]interface{}{int64(1), int64(4), int64(30)}, 5)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !res.Allowed || res.Remaining != 4 || res.ResetIn != 30*time.Second || res.Limit != 5 {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = parseLimitResult([]interface{}{int64(0), int64(0), int64(12)}, 5)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Allowed {
		t.Fatalf("expected denial")
	}

	if _, err := parseLimitResult("nope", 5); err == nil {
		t.Fatalf("expected error for malformed result")
	}
	if _, err := parseLimitResult([]interface{}{"1", int64(0), int64(0)}, 5); err == nil {
		t.Fatalf("expected error for wrong element types")
	}
}

func TestZeroLimitDisablesCheck(t *testing.T) {
	rl := NewRateLimiter(nil, RateLimitConfig{})
	res, err := rl.checkLimit(t.Context(), "k", 0, time.Minute)
	if err != nil || !res.Allowed {
		t.Fatalf("zero limit should allow: %+v %v", res, err)
	}
}
