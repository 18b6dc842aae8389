package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"socialhub/internal/events"
	"socialhub/internal/metrics"
	socialhub_errors "socialhub/pkg/errors"

	"go.uber.org/zap"
)

var ErrHandlerNotFound = errors.New("unknown event")

// HandlerFunc processes one inbound event for a session.
type HandlerFunc func(ctx context.Context, c *Client, data json.RawMessage) error

// Dispatcher routes inbound frames to handlers keyed by event name. Every
// event runs in its own goroutine, bounded per session.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	wg       sync.WaitGroup
	logger   WebSocketLogger
}

func NewDispatcher(logger WebSocketLogger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

func (d *Dispatcher) Register(event string, handler HandlerFunc) {
	d.mu.Lock()
	d.handlers[event] = handler
	d.mu.Unlock()
}

func (d *Dispatcher) handler(event string) (HandlerFunc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[event]
	return h, ok
}

// Dispatch decodes frame and schedules its handler. It blocks while the
// session already has its maximum number of events in flight.
func (d *Dispatcher) Dispatch(c *Client, frame []byte) {
	env, err := events.Decode(frame)
	if err != nil || env.Event == "" {
		metrics.WSEventsTotal.WithLabelValues("malformed", "error").Inc()
		c.Send(events.EventErrorMessage, events.ErrorEvent{Message: "malformed frame"})
		return
	}

	handler, ok := d.handler(env.Event)
	if !ok {
		metrics.WSEventsTotal.WithLabelValues("unknown", "error").Inc()
		c.Send(events.EventErrorMessage, events.ErrorEvent{Message: ErrHandlerNotFound.Error(), Event: env.Event})
		return
	}

	if !c.rateLimiter.Allow(env.Event) {
		metrics.WSEventsTotal.WithLabelValues(env.Event, "rate_limited").Inc()
		d.logger.Warn("rate limit exceeded", c.userID, c.id, zap.String("msg_type", env.Event))
		c.Send(events.EventErrorMessage, events.ErrorEvent{Message: "rate limit exceeded", Event: env.Event})
		return
	}

	if err := c.inflight.Acquire(c.ctx, 1); err != nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer c.inflight.Release(1)
		d.run(c, env, handler)
	}()
}

func (d *Dispatcher) run(c *Client, env events.Envelope, handler HandlerFunc) {
	defer func() {
		if r := recover(); r != nil {
			metrics.WSEventsTotal.WithLabelValues(env.Event, "error").Inc()
			d.logger.Error("handler panic", c.userID, c.id, fmt.Errorf("%v", r), zap.String("msg_type", env.Event))
			c.Send(events.EventErrorMessage, events.ErrorEvent{Message: "internal error", Event: env.Event})
		}
	}()

	if err := handler(c.ctx, c, env.Data); err != nil {
		metrics.WSEventsTotal.WithLabelValues(env.Event, "error").Inc()
		if errors.Is(err, socialhub_errors.ErrPersistence) || clientMessage(err) == "internal error" {
			d.logger.Error("event failed", c.userID, c.id, err, zap.String("msg_type", env.Event))
		} else {
			d.logger.Debug("event rejected", c.userID, c.id, zap.String("msg_type", env.Event), zap.Error(err))
		}
		c.Send(events.EventErrorMessage, events.ErrorEvent{Message: clientMessage(err), Event: env.Event})
		return
	}
	metrics.WSEventsTotal.WithLabelValues(env.Event, "ok").Inc()
}

// Wait blocks until every scheduled handler has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// clientMessage is the error text shown to the originating session. Storage
// and unexpected failures are not described further.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, socialhub_errors.ErrValidation),
		errors.Is(err, socialhub_errors.ErrNotFound),
		errors.Is(err, socialhub_errors.ErrRateLimited):
		return err.Error()
	case errors.Is(err, socialhub_errors.ErrForbidden):
		return "not a member of this conversation"
	case errors.Is(err, socialhub_errors.ErrPersistence):
		return "message could not be saved"
	default:
		return "internal error"
	}
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, fmt.Errorf("%w: missing data", socialhub_errors.ErrValidation)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", socialhub_errors.ErrValidation, err)
	}
	return v, nil
}
