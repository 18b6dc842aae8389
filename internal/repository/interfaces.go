package repository

import (
	"context"
	"time"

	"socialhub/internal/domain/conversation"
	"socialhub/internal/domain/message"
	"socialhub/internal/domain/notification"
)

type ConversationRepository interface {
	// CreateWithMembers inserts the conversation and one member row per user
	// id in a single transaction.
	CreateWithMembers(ctx context.Context, c *conversation.Conversation, memberIDs []int64) error
	GetByID(ctx context.Context, id int64) (conversation.Conversation, error)
	GetByPairKey(ctx context.Context, pairKey string) (conversation.Conversation, error)
	GetPrivateBetween(ctx context.Context, userID1, userID2 int64) (conversation.Conversation, error)
	GetUserConversations(ctx context.Context, userID int64, limit int) ([]conversation.Conversation, error)
	UpdateName(ctx context.Context, id int64, name string) error
	Touch(ctx context.Context, id int64, at time.Time) error

	IsMember(ctx context.Context, conversationID, userID int64) (bool, error)
	GetMemberIDs(ctx context.Context, conversationID int64) ([]int64, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetConversationMessages(ctx context.Context, conversationID, beforeID int64, limit int) ([]message.Message, error)
	GetLatestMessage(ctx context.Context, conversationID int64) (message.Message, error)
	// FilterConversationMessageIDs returns the subset of ids that belong to
	// the conversation, in the order given.
	FilterConversationMessageIDs(ctx context.Context, conversationID int64, ids []int64) ([]int64, error)
}

type ReceiptRepository interface {
	// BulkCreateDelivered inserts delivered receipts, leaving existing rows
	// untouched.
	BulkCreateDelivered(ctx context.Context, receipts []message.Receipt) error
	CreateDelivered(ctx context.Context, messageID, userID int64, at time.Time) error
	// MarkRead upserts a read receipt. Rows already read are not rewritten.
	MarkRead(ctx context.Context, messageID, userID int64, at time.Time) error
	GetReceipt(ctx context.Context, messageID, userID int64) (message.Receipt, error)
	GetMessageReceipts(ctx context.Context, messageID int64) ([]message.Receipt, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	GetByID(ctx context.Context, id int64) (notification.Notification, error)
}
