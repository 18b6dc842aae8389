package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"socialhub/internal/events"
	socialhub_errors "socialhub/pkg/errors"
)

func errorFrames(t *testing.T, c *Client) []events.ErrorEvent {
	t.Helper()
	var out []events.ErrorEvent
	for _, env := range drain(c) {
		if env.Event != events.EventErrorMessage {
			continue
		}
		var e events.ErrorEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			t.Fatalf("decode error event: %v", err)
		}
		out = append(out, e)
	}
	return out
}

func TestDispatchRunsRegisteredHandler(t *testing.T) {
	d := NewDispatcher(NewWebSocketLogger(nil))
	var got atomic.Int64
	d.Register("ping", func(_ context.Context, c *Client, data json.RawMessage) error {
		var v struct{ N int64 }
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		got.Store(v.N)
		return nil
	})
	c := newTestClient(t, 1)

	d.Dispatch(c, []byte(`{"event":"ping","data":{"N":5}}`))
	d.Wait()

	if got.Load() != 5 {
		t.Fatalf("handler saw %d", got.Load())
	}
	if errs := errorFrames(t, c); len(errs) != 0 {
		t.Fatalf("unexpected errors %+v", errs)
	}
}

func TestDispatchReportsErrorsToOrigin(t *testing.T) {
	d := NewDispatcher(NewWebSocketLogger(nil))
	d.Register("forbidden", func(context.Context, *Client, json.RawMessage) error {
		return socialhub_errors.ErrForbidden
	})
	d.Register("broken", func(context.Context, *Client, json.RawMessage) error {
		return errors.New("connection reset by peer")
	})
	d.Register("panics", func(context.Context, *Client, json.RawMessage) error {
		panic("boom")
	})

	cases := []struct {
		frame string
		want  events.ErrorEvent
	}{
		{`not json`, events.ErrorEvent{Message: "malformed frame"}},
		{`{"event":"nope"}`, events.ErrorEvent{Message: "unknown event", Event: "nope"}},
		{`{"event":"forbidden"}`, events.ErrorEvent{Message: "not a member of this conversation", Event: "forbidden"}},
		{`{"event":"broken"}`, events.ErrorEvent{Message: "internal error", Event: "broken"}},
		{`{"event":"panics"}`, events.ErrorEvent{Message: "internal error", Event: "panics"}},
	}
	for _, tc := range cases {
		t.Run(tc.frame, func(t *testing.T) {
			c := newTestClient(t, 1)
			d.Dispatch(c, []byte(tc.frame))
			d.Wait()

			errs := errorFrames(t, c)
			if len(errs) != 1 || errs[0] != tc.want {
				t.Fatalf("errors = %+v, want %+v", errs, tc.want)
			}
		})
	}
}

func TestDispatchAppliesSessionRateLimit(t *testing.T) {
	d := NewDispatcher(NewWebSocketLogger(nil))
	var calls atomic.Int32
	d.Register(events.EventTyping, func(context.Context, *Client, json.RawMessage) error {
		calls.Add(1)
		return nil
	})
	c := NewClient(t.Context(), nil, 1, ClientConfig{
		SendBufferSize: 8,
		RateLimits:     RateLimits{events.EventTyping: 2},
	}, NewWebSocketLogger(nil))
	defer c.cancel()

	for range 3 {
		d.Dispatch(c, []byte(`{"event":"typing","data":{}}`))
	}
	d.Wait()

	if calls.Load() != 2 {
		t.Fatalf("calls = %d", calls.Load())
	}
	errs := errorFrames(t, c)
	if len(errs) != 1 || errs[0].Message != "rate limit exceeded" {
		t.Fatalf("errors = %+v", errs)
	}
}

func TestDispatchBoundsInflightHandlers(t *testing.T) {
	d := NewDispatcher(NewWebSocketLogger(nil))
	release := make(chan struct{})
	var running, peak atomic.Int32
	d.Register("slow", func(context.Context, *Client, json.RawMessage) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return nil
	})
	c := NewClient(t.Context(), nil, 1, ClientConfig{MaxInflight: 2}, NewWebSocketLogger(nil))
	defer c.cancel()

	done := make(chan struct{})
	go func() {
		for range 4 {
			d.Dispatch(c, []byte(`{"event":"slow"}`))
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("dispatch should block while the session is saturated")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-done
	d.Wait()

	if peak.Load() > 2 {
		t.Fatalf("peak concurrency = %d", peak.Load())
	}
}

func TestClientMessage(t *testing.T) {
	cases := map[string]struct {
		err  error
		want string
	}{
		"validation":  {fmt.Errorf("%w: content is empty", socialhub_errors.ErrValidation), "validation failed: content is empty"},
		"persistence": {fmt.Errorf("%w: disk full", socialhub_errors.ErrPersistence), "message could not be saved"},
		"forbidden":   {socialhub_errors.ErrForbidden, "not a member of this conversation"},
		"unexpected":  {errors.New("boom"), "internal error"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := clientMessage(tc.err); got != tc.want {
				t.Fatalf("clientMessage = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClientRateLimiterRefillsEveryMinute(t *testing.T) {
	now := time.Unix(0, 0)
	rl := NewClientRateLimiter(RateLimits{events.EventSendMessage: 1})
	rl.now = func() time.Time { return now }
	rl.lastRefill = now

	if !rl.Allow(events.EventSendMessage) {
		t.Fatal("first send should pass")
	}
	if rl.Allow(events.EventSendMessage) {
		t.Fatal("second send should be limited")
	}
	if !rl.Allow("unlisted") {
		t.Fatal("events without a limit always pass")
	}

	now = now.Add(time.Minute)
	if !rl.Allow(events.EventSendMessage) {
		t.Fatal("bucket should refill after a minute")
	}
}
