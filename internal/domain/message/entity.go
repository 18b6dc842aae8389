package message

import (
	"time"
)

// Type is the content kind of a message.
type Type string

const (
	TypeText    Type = "text"
	TypeImage   Type = "image"
	TypeVideo   Type = "video"
	TypeFile    Type = "file"
	TypeSticker Type = "sticker"
	TypeEmoji   Type = "emoji"
)

// Valid reports whether t is one of the known message types.
func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeVideo, TypeFile, TypeSticker, TypeEmoji:
		return true
	}
	return false
}

// Message represents the messages table. Rows are immutable once created.
type Message struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID int64     `gorm:"not null;index:idx_messages_conversation_created,priority:1" json:"conversation_id"`
	SenderID       int64     `gorm:"not null;index" json:"sender_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Type           Type      `gorm:"type:varchar(16);not null;default:'text'" json:"type"`
	CreatedAt      time.Time `gorm:"not null;index:idx_messages_conversation_created,priority:2" json:"created_at"`
}

// ReceiptStatus is the delivery state of a message for one recipient.
type ReceiptStatus string

const (
	ReceiptDelivered ReceiptStatus = "delivered"
	ReceiptRead      ReceiptStatus = "read"
)

// Receipt represents message_receipts. One row per (message, user).
type Receipt struct {
	MessageID int64         `gorm:"primaryKey;autoIncrement:false" json:"message_id"`
	UserID    int64         `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Status    ReceiptStatus `gorm:"type:varchar(16);not null" json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (Receipt) TableName() string {
	return "message_receipts"
}
