package websocket

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"socialhub/internal/events"
	"socialhub/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"
)

// ClientConfig tunes one session.
type ClientConfig struct {
	SendBufferSize  int
	MaxInflight     int64
	MaxMessageBytes int64
	PongWait        time.Duration
	WriteWait       time.Duration
	RateLimits      RateLimits
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 256
	}
	if c.MaxInflight <= 0 {
		c.MaxInflight = 16
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 64 * 1024
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.RateLimits == nil {
		c.RateLimits = DefaultRateLimits(60)
	}
	return c
}

// Client represents a single WebSocket session of an authenticated user
type Client struct {
	id     string
	userID int64
	conn   *websocket.Conn
	cfg    ClientConfig

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	roomsMu sync.RWMutex
	rooms   map[string]struct{}

	// membershipMu orders joins against leaves of the same session.
	membershipMu sync.Mutex
	pendingJoins map[string]*pendingJoin

	rateLimiter *ClientRateLimiter
	inflight    *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	connectedAt  time.Time
	lastActivity atomic.Int64
	logger       WebSocketLogger
}

func NewClient(parent context.Context, conn *websocket.Conn, userID int64, cfg ClientConfig, logger WebSocketLogger) *Client {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(parent)
	now := time.Now()
	c := &Client{
		id:           uuid.New().String(),
		userID:       userID,
		conn:         conn,
		cfg:          cfg,
		send:         make(chan []byte, cfg.SendBufferSize),
		rooms:        make(map[string]struct{}),
		pendingJoins: make(map[string]*pendingJoin),
		rateLimiter:  NewClientRateLimiter(cfg.RateLimits),
		inflight:     semaphore.NewWeighted(cfg.MaxInflight),
		ctx:          ctx,
		cancel:       cancel,
		connectedAt:  now,
		logger:       logger,
	}
	c.lastActivity.Store(now.UnixNano())
	return c
}

// ID is unique per connection.
func (c *Client) ID() string { return c.id }

func (c *Client) UserID() int64 { return c.userID }

// Context is cancelled when the connection goes away.
func (c *Client) Context() context.Context { return c.ctx }

func (c *Client) joined(room string) {
	c.roomsMu.Lock()
	c.rooms[room] = struct{}{}
	c.roomsMu.Unlock()
}

func (c *Client) left(room string) {
	c.roomsMu.Lock()
	delete(c.rooms, room)
	c.roomsMu.Unlock()
}

// pendingJoin tracks joins of one room still waiting for authorization.
// leaves counts the leave requests seen since the first of them started.
type pendingJoin struct {
	inflight int
	leaves   uint64
}

// beginJoin registers a join for room and returns the leave count it must
// still observe when it completes.
func (c *Client) beginJoin(room string) uint64 {
	c.membershipMu.Lock()
	defer c.membershipMu.Unlock()
	p, ok := c.pendingJoins[room]
	if !ok {
		p = &pendingJoin{}
		c.pendingJoins[room] = p
	}
	p.inflight++
	return p.leaves
}

// finishJoin runs apply only when no leave for room arrived since beginJoin
// returned mark. It reports whether apply ran.
func (c *Client) finishJoin(room string, mark uint64, apply func()) bool {
	c.membershipMu.Lock()
	defer c.membershipMu.Unlock()
	p := c.pendingJoins[room]
	ok := p.leaves == mark
	if ok && apply != nil {
		apply()
	}
	if p.inflight--; p.inflight == 0 {
		delete(c.pendingJoins, room)
	}
	return ok
}

// leaveRoom runs apply and cancels every join of room still in flight.
func (c *Client) leaveRoom(room string, apply func()) {
	c.membershipMu.Lock()
	defer c.membershipMu.Unlock()
	if p, ok := c.pendingJoins[room]; ok {
		p.leaves++
	}
	apply()
}

// InRoom reports whether the session has joined room.
func (c *Client) InRoom(room string) bool {
	c.roomsMu.RLock()
	defer c.roomsMu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// Rooms returns a copy of the joined rooms.
func (c *Client) Rooms() []string {
	c.roomsMu.RLock()
	defer c.roomsMu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// SendFrame queues an encoded frame without blocking. Frames for a full or
// closed session are dropped.
func (c *Client) SendFrame(frame []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		metrics.WSDroppedFramesTotal.Inc()
		c.logger.Warn("send buffer full, frame dropped", c.userID, c.id)
		return false
	}
}

// Send encodes and queues one event for this session only.
func (c *Client) Send(event string, payload any) {
	frame, err := events.Encode(event, payload)
	if err != nil {
		c.logger.Error("encode event failed", c.userID, c.id, err)
		return
	}
	c.SendFrame(frame)
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// readPump reads frames until the connection fails and hands each one to
// the dispatcher.
func (c *Client) readPump(dispatcher *Dispatcher) {
	defer c.cancel()

	c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		c.touch()
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket unexpected close", c.userID, c.id, err)
			}
			return
		}
		c.touch()
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))

		frame = bytes.TrimSpace(frame)
		if len(frame) == 0 {
			continue
		}
		dispatcher.Dispatch(c, frame)
	}
}

// writePump drains the outbound queue and keeps the connection alive with
// pings. It owns all writes to the connection.
func (c *Client) writePump() {
	pingPeriod := (c.cfg.PongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			// one frame per message; clients parse each as a JSON document
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.cancel()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
			idle := time.Since(time.Unix(0, c.lastActivity.Load()))
			if idle > c.cfg.PongWait*2 {
				c.logger.Info("client idle timeout", c.userID, c.id)
				c.cancel()
				return
			}
		}
	}
}
