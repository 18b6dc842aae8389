package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"socialhub/internal/domain/message"
)

// Client -> server events
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventTyping            = "typing"
	EventSendMessage       = "send_message"
	EventMessageSeen       = "message_seen"
)

// Server -> client events
const (
	EventUserStatus          = "user_status"
	EventReceiveMessage      = "receive_message"
	EventMessageNotification = "message_notification"
	EventNewNotification     = "new_notification"
	EventErrorMessage        = "error_message"
)

// ConversationRef is the join/leave payload. Clients send either a bare id
// (7 or "7") or an object {"conversationId": 7}.
type ConversationRef struct {
	ConversationID int64 `json:"conversationId"`
}

func (r *ConversationRef) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		return fmt.Errorf("empty conversation reference")
	}
	if raw[0] == '{' {
		type plain ConversationRef
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		r.ConversationID = p.ConversationID
		return nil
	}
	id, err := strconv.ParseInt(strings.Trim(raw, `"`), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid conversation id %s", raw)
	}
	r.ConversationID = id
	return nil
}

type TypingPayload struct {
	ConversationID int64 `json:"conversationId"`
	IsTyping       bool  `json:"isTyping"`
}

type SendMessagePayload struct {
	ConversationID int64  `json:"conversationId"`
	Content        string `json:"content"`
	Type           string `json:"type"`
}

type MessageSeenPayload struct {
	ConversationID int64   `json:"conversationId"`
	MessageIDs     []int64 `json:"messageIds"`
}

type UserStatusEvent struct {
	UserID int64  `json:"userId"`
	Status string `json:"status"`
}

type TypingEvent struct {
	UserID         int64 `json:"userId"`
	ConversationID int64 `json:"conversationId"`
	IsTyping       bool  `json:"isTyping"`
}

type MessageNotificationEvent struct {
	ConversationID int64           `json:"conversationId"`
	Message        message.Message `json:"message"`
}

type MessageSeenEvent struct {
	UserID         int64   `json:"userId"`
	ConversationID int64   `json:"conversationId"`
	MessageIDs     []int64 `json:"messageIds"`
}

type NotificationSender struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type NewNotificationEvent struct {
	ID        int64              `json:"id"`
	Type      string             `json:"type"`
	Content   string             `json:"content"`
	Sender    NotificationSender `json:"sender"`
	CreatedAt time.Time          `json:"created_at"`
	Metadata  json.RawMessage    `json:"metadata,omitempty"`
}

type ErrorEvent struct {
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}
