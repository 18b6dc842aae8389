package proxy

import (
	"context"
	"fmt"

	"socialhub/internal/repository"
	socialhub_errors "socialhub/pkg/errors"
)

// AccessControl answers membership questions against persisted state. It
// never caches, so a removed member loses access on the next check.
type AccessControl struct {
	conversationRepo repository.ConversationRepository
}

func NewAccessControl(conversationRepo repository.ConversationRepository) *AccessControl {
	return &AccessControl{conversationRepo: conversationRepo}
}

func (a *AccessControl) CanSendMessage(ctx context.Context, userID, conversationID int64) error {
	return a.ensureMember(ctx, conversationID, userID)
}

func (a *AccessControl) CanViewConversation(ctx context.Context, userID, conversationID int64) error {
	return a.ensureMember(ctx, conversationID, userID)
}

func (a *AccessControl) CanJoinRoom(ctx context.Context, userID, conversationID int64) error {
	return a.ensureMember(ctx, conversationID, userID)
}

func (a *AccessControl) ensureMember(ctx context.Context, conversationID, userID int64) error {
	if a.conversationRepo == nil {
		return socialhub_errors.ErrForbidden
	}
	if conversationID <= 0 || userID <= 0 {
		return fmt.Errorf("%w: conversation and user ids are required", socialhub_errors.ErrValidation)
	}
	ok, err := a.conversationRepo.IsMember(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	// distinguish a missing conversation from one the user is not in
	if _, err := a.conversationRepo.GetByID(ctx, conversationID); err != nil {
		return err
	}
	return socialhub_errors.ErrForbidden
}
