package notification

import (
	"encoding/json"
	"time"
)

// Notification types produced by the social collaborators.
const (
	TypeFriendRequest = "friend_request"
	TypeFriendAccept  = "friend_accept"
	TypeLike          = "like"
	TypeComment       = "comment"
)

// Notification represents the notifications table. Rows are written by the
// friendship, like and comment handlers; the realtime layer only delivers them.
type Notification struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ReceiverID int64     `gorm:"not null;index:idx_notifications_receiver_created,priority:1" json:"receiver_id"`
	SenderID   int64     `gorm:"not null" json:"sender_id"`
	Type       string    `gorm:"type:varchar(32);not null" json:"type"`
	Content    string    `gorm:"type:text" json:"content"`
	Metadata   string    `gorm:"type:text" json:"metadata,omitempty"`
	IsRead     bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt  time.Time `gorm:"index:idx_notifications_receiver_created,priority:2" json:"created_at"`

	// SenderName is filled by the caller for display; it is not stored.
	SenderName string `gorm:"-" json:"-"`
}

func (Notification) TableName() string {
	return "notifications"
}

// RawMetadata returns the metadata as raw JSON, or nil when it is empty or
// not valid JSON.
func (n Notification) RawMetadata() json.RawMessage {
	if n.Metadata == "" || !json.Valid([]byte(n.Metadata)) {
		return nil
	}
	return json.RawMessage(n.Metadata)
}
