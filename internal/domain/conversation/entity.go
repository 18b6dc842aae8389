package conversation

import (
	"fmt"
	"time"
)

// Kind distinguishes one-to-one from group conversations.
type Kind string

const (
	KindPrivate Kind = "private"
	KindGroup   Kind = "group"
)

// Conversation represents the conversations table
type Conversation struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      Kind      `gorm:"type:varchar(16);not null;index" json:"type"`
	Name      *string   `gorm:"type:text" json:"name"`
	PairKey   *string   `gorm:"type:varchar(64);uniqueIndex:idx_conversations_pair_key" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index:idx_conversations_updated,sort:desc" json:"updated_at"`

	// Relationships
	Members []Member `gorm:"foreignKey:ConversationID" json:"members,omitempty"`
}

// Member represents the conversation_members table
type Member struct {
	ConversationID int64     `gorm:"primaryKey;autoIncrement:false" json:"conversation_id"`
	UserID         int64     `gorm:"primaryKey;autoIncrement:false;index:idx_conversation_members_user" json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Member) TableName() string {
	return "conversation_members"
}

// IsPrivate reports whether c is a one-to-one conversation.
func (c Conversation) IsPrivate() bool {
	return c.Type == KindPrivate
}

// MemberIDs returns the user ids of the preloaded members.
func (c Conversation) MemberIDs() []int64 {
	ids := make([]int64, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// PairKeyFor returns the unordered pair key that makes private conversations
// unique per pair of users.
func PairKeyFor(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
