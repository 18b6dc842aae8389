package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"socialhub/internal/events"
	"socialhub/pkg/logger"

	"go.uber.org/zap"
)

// RoomPublisher forwards room traffic to the other nodes.
type RoomPublisher interface {
	PublishRoom(ctx context.Context, room string, frame []byte) error
}

// Hub manages WebSocket client connections and room membership
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client (for cleanup)
	clients map[string]*Client

	// rooms maps room name to set of clients joined to it
	rooms map[string]map[*Client]struct{}

	relay RoomPublisher
	log   *logger.Logger
}

func NewHub(l *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[*Client]struct{}),
		log:     logger.OrNop(l).Named("hub"),
	}
}

// WithRelay routes every emit through the cross-node relay. Each node,
// this one included, delivers relayed frames to its local sessions.
func (h *Hub) WithRelay(relay RoomPublisher) *Hub {
	h.relay = relay
	return h
}

// Add registers a connected client.
func (h *Hub) Add(client *Client) {
	h.mu.Lock()
	h.clients[client.ID()] = client
	h.mu.Unlock()
}

// Remove drops a client from every room and closes its outbound queue.
func (h *Hub) Remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range client.Rooms() {
		h.leaveLocked(client, room)
	}
	delete(h.clients, client.ID())
	client.closeSend()
}

// Join adds the client to room. Joining twice is a no-op.
func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID()]; !ok {
		return
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.joined(room)
}

// Leave removes the client from room.
func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, room)
}

func (h *Hub) leaveLocked(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	client.left(room)
}

// Emit sends event to every session in room.
func (h *Hub) Emit(room, event string, payload any) {
	h.emit(room, "", event, payload)
}

// EmitExcept sends event to every session in room but exceptClientID.
func (h *Hub) EmitExcept(room, exceptClientID, event string, payload any) {
	h.emit(room, exceptClientID, event, payload)
}

// EmitAll sends event to every connected session.
func (h *Hub) EmitAll(event string, payload any) {
	h.emit(events.BroadcastRoom, "", event, payload)
}

func (h *Hub) emit(room, except, event string, payload any) {
	frame, err := events.Encode(event, payload)
	if err != nil {
		h.log.Logger.Error("encode event failed", zap.String("event", event), zap.String("room", room), zap.Error(err))
		return
	}

	if h.relay != nil {
		relayed, err := json.Marshal(events.RelayFrame{Except: except, Frame: frame})
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err = h.relay.PublishRoom(ctx, room, relayed)
			cancel()
		}
		if err == nil {
			return
		}
		h.log.Logger.Warn("relay publish failed, delivering locally", zap.String("room", room), zap.Error(err))
	}

	h.DeliverLocal(room, except, frame)
}

// DeliverLocal writes an encoded frame to the sessions of room on this node.
func (h *Hub) DeliverLocal(room, except string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if room == events.BroadcastRoom {
		for id, c := range h.clients {
			if id != except {
				c.SendFrame(frame)
			}
		}
		return
	}
	for c := range h.rooms[room] {
		if c.ID() != except {
			c.SendFrame(frame)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of local sessions joined to room
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
