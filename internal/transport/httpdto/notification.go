package httpdto

import (
	"encoding/json"
	"time"

	"socialhub/internal/domain/notification"
)

type CreateNotificationRequest struct {
	ReceiverID int64           `json:"receiverId" binding:"required"`
	Type       string          `json:"type" binding:"required"`
	Content    string          `json:"content"`
	SenderName string          `json:"senderName"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

type NotificationDTO struct {
	ID         int64           `json:"id"`
	ReceiverID int64           `json:"receiverId"`
	SenderID   int64           `json:"senderId"`
	Type       string          `json:"type"`
	Content    string          `json:"content"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// CreateNotificationResponse reports whether a live session received the
// notification. Skipped is set for self-notifications, which are not stored.
type CreateNotificationResponse struct {
	Notification *NotificationDTO `json:"notification,omitempty"`
	Delivered    bool             `json:"delivered"`
	Skipped      bool             `json:"skipped,omitempty"`
}

func FromNotification(n *notification.Notification) *NotificationDTO {
	if n == nil {
		return nil
	}
	return &NotificationDTO{
		ID:         n.ID,
		ReceiverID: n.ReceiverID,
		SenderID:   n.SenderID,
		Type:       n.Type,
		Content:    n.Content,
		Metadata:   n.RawMetadata(),
		CreatedAt:  n.CreatedAt,
	}
}
