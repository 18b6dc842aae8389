package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"socialhub/internal/events"
	"socialhub/internal/services"
	socialhub_errors "socialhub/pkg/errors"

	"go.uber.org/zap"
)

// JoinAuthorizer decides whether a user may enter a room.
type JoinAuthorizer interface {
	CanJoin(ctx context.Context, userID int64, room string) error
}

// ChatHandlers binds the client events to the hub and the services.
type ChatHandlers struct {
	hub        *Hub
	authorizer JoinAuthorizer
	messages   *services.MessageService
	receipts   *services.ReceiptService
}

func NewChatHandlers(hub *Hub, authorizer JoinAuthorizer, messages *services.MessageService, receipts *services.ReceiptService) *ChatHandlers {
	return &ChatHandlers{hub: hub, authorizer: authorizer, messages: messages, receipts: receipts}
}

func (h *ChatHandlers) Register(d *Dispatcher) {
	d.Register(events.EventJoinConversation, h.join)
	d.Register(events.EventLeaveConversation, h.leave)
	d.Register(events.EventTyping, h.typing)
	d.Register(events.EventSendMessage, h.sendMessage)
	d.Register(events.EventMessageSeen, h.messageSeen)
}

func (h *ChatHandlers) join(ctx context.Context, c *Client, data json.RawMessage) error {
	ref, err := decode[events.ConversationRef](data)
	if err != nil {
		return err
	}
	if ref.ConversationID <= 0 {
		return fmt.Errorf("%w: conversationId is required", socialhub_errors.ErrValidation)
	}
	room := events.ConversationRoom(ref.ConversationID)
	mark := c.beginJoin(room)
	if err := h.authorizer.CanJoin(ctx, c.UserID(), room); err != nil {
		c.finishJoin(room, mark, nil)
		return err
	}
	if !c.finishJoin(room, mark, func() { h.hub.Join(c, room) }) {
		c.logger.Debug("join superseded by leave", c.userID, c.id, zap.String("room", room))
		return nil
	}
	c.logger.Debug("joined room", c.userID, c.id, zap.String("room", room))
	return nil
}

func (h *ChatHandlers) leave(_ context.Context, c *Client, data json.RawMessage) error {
	ref, err := decode[events.ConversationRef](data)
	if err != nil {
		return err
	}
	room := events.ConversationRoom(ref.ConversationID)
	c.leaveRoom(room, func() { h.hub.Leave(c, room) })
	return nil
}

// typing is relayed to the other sessions in the room and never stored.
func (h *ChatHandlers) typing(_ context.Context, c *Client, data json.RawMessage) error {
	in, err := decode[events.TypingPayload](data)
	if err != nil {
		return err
	}
	if in.ConversationID <= 0 {
		return fmt.Errorf("%w: conversationId is required", socialhub_errors.ErrValidation)
	}
	room := events.ConversationRoom(in.ConversationID)
	if !c.InRoom(room) {
		return socialhub_errors.ErrForbidden
	}
	h.hub.EmitExcept(room, c.ID(), events.EventTyping, events.TypingEvent{
		UserID:         c.UserID(),
		ConversationID: in.ConversationID,
		IsTyping:       in.IsTyping,
	})
	return nil
}

func (h *ChatHandlers) sendMessage(ctx context.Context, c *Client, data json.RawMessage) error {
	in, err := decode[events.SendMessagePayload](data)
	if err != nil {
		return err
	}
	_, err = h.messages.Send(ctx, services.SendInput{
		ConversationID: in.ConversationID,
		SenderID:       c.UserID(),
		Content:        in.Content,
		Type:           in.Type,
	})
	return err
}

func (h *ChatHandlers) messageSeen(ctx context.Context, c *Client, data json.RawMessage) error {
	in, err := decode[events.MessageSeenPayload](data)
	if err != nil {
		return err
	}
	_, err = h.receipts.MarkSeen(ctx, c.UserID(), in.ConversationID, in.MessageIDs)
	return err
}
