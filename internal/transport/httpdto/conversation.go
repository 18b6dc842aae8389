package httpdto

import (
	"time"

	"socialhub/internal/domain/conversation"
	"socialhub/internal/domain/message"
	"socialhub/internal/services"
)

type CreatePrivateConversationRequest struct {
	UserID int64 `json:"userId" binding:"required"`
}

type CreateGroupConversationRequest struct {
	Name  string  `json:"name"`
	Users []int64 `json:"users" binding:"required"`
}

type RenameConversationRequest struct {
	Name string `json:"name" binding:"required"`
}

type ConversationDTO struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name,omitempty"`
	MemberIDs []int64   `json:"memberIds"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type MessageDTO struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	SenderID       int64     `json:"senderId"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"createdAt"`
}

type ConversationSummaryDTO struct {
	ConversationDTO
	LastMessage *MessageDTO `json:"lastMessage,omitempty"`
}

type ListConversationsResponse struct {
	Conversations []ConversationSummaryDTO `json:"conversations"`
}

type ListMessagesResponse struct {
	Messages []MessageDTO `json:"messages"`
}

func FromConversation(c conversation.Conversation) ConversationDTO {
	dto := ConversationDTO{
		ID:        c.ID,
		Type:      string(c.Type),
		MemberIDs: c.MemberIDs(),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.Name != nil {
		dto.Name = *c.Name
	}
	return dto
}

func FromMessage(m message.Message) MessageDTO {
	return MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Type:           string(m.Type),
		CreatedAt:      m.CreatedAt,
	}
}

func FromMessageSlice(items []message.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(items))
	for _, m := range items {
		out = append(out, FromMessage(m))
	}
	return out
}

func FromSummarySlice(items []services.ConversationSummary) []ConversationSummaryDTO {
	out := make([]ConversationSummaryDTO, 0, len(items))
	for _, s := range items {
		dto := ConversationSummaryDTO{ConversationDTO: FromConversation(s.Conversation)}
		dto.MemberIDs = s.MemberIDs
		if s.LastMessage != nil {
			last := FromMessage(*s.LastMessage)
			dto.LastMessage = &last
		}
		out = append(out, dto)
	}
	return out
}
