package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"socialhub/internal/domain/conversation"
	"socialhub/internal/domain/message"
	"socialhub/internal/proxy"
	"socialhub/internal/repository"
	socialhub_errors "socialhub/pkg/errors"
	"socialhub/pkg/logger"

	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 1000
	DefaultListLimit    = 100
	MaxConversationName = 255
)

type ConversationService struct {
	repo        repository.ConversationRepository
	messageRepo repository.MessageRepository
	access      *proxy.AccessControl
	log         *logger.Logger
	now         func() time.Time
}

func NewConversationService(repo repository.ConversationRepository, messageRepo repository.MessageRepository, access *proxy.AccessControl, l *logger.Logger) *ConversationService {
	if access == nil {
		access = proxy.NewAccessControl(repo)
	}
	return &ConversationService{
		repo:        repo,
		messageRepo: messageRepo,
		access:      access,
		log:         logger.OrNop(l).Named("conversations"),
		now:         time.Now,
	}
}

// ConversationSummary is one row of a user's inbox.
type ConversationSummary struct {
	Conversation conversation.Conversation `json:"conversation"`
	MemberIDs    []int64                   `json:"member_ids"`
	LastMessage  *message.Message          `json:"last_message,omitempty"`
}

// CreatePrivate returns the private conversation shared by me and other,
// creating it when none exists. Concurrent callers for the same pair
// converge on one row through the unique pair key.
func (s *ConversationService) CreatePrivate(ctx context.Context, me, other int64) (conversation.Conversation, error) {
	if me <= 0 || other <= 0 {
		return conversation.Conversation{}, fmt.Errorf("%w: user ids are required", socialhub_errors.ErrValidation)
	}
	if me == other {
		return conversation.Conversation{}, fmt.Errorf("%w: cannot start a conversation with yourself", socialhub_errors.ErrValidation)
	}

	pairKey := conversation.PairKeyFor(me, other)
	existing, err := s.repo.GetByPairKey(ctx, pairKey)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, socialhub_errors.ErrNotFound) {
		return conversation.Conversation{}, err
	}
	// rows imported without a pair key are still found by membership
	legacy, err := s.repo.GetPrivateBetween(ctx, me, other)
	if err == nil {
		return legacy, nil
	}
	if !errors.Is(err, socialhub_errors.ErrNotFound) {
		return conversation.Conversation{}, err
	}

	now := s.now().UTC()
	conv := conversation.Conversation{
		Type:      conversation.KindPrivate,
		PairKey:   &pairKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.repo.CreateWithMembers(ctx, &conv, []int64{me, other})
	if errors.Is(err, socialhub_errors.ErrAlreadyExists) {
		// lost the race to a concurrent creator
		return s.repo.GetByPairKey(ctx, pairKey)
	}
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("%w: %v", socialhub_errors.ErrPersistence, err)
	}

	s.log.WithContext(ctx).Info("private conversation created",
		zap.Int64("conversation_id", conv.ID),
		zap.Int64("user_id", me),
		zap.Int64("peer_id", other),
	)
	return conv, nil
}

// CreateGroup always creates a new group with the creator and every
// distinct user in users.
func (s *ConversationService) CreateGroup(ctx context.Context, creator int64, name string, users []int64) (conversation.Conversation, error) {
	if creator <= 0 {
		return conversation.Conversation{}, fmt.Errorf("%w: creator is required", socialhub_errors.ErrValidation)
	}
	name, err := normalizeName(name)
	if err != nil {
		return conversation.Conversation{}, err
	}

	members := []int64{creator}
	seen := map[int64]struct{}{creator: {}}
	for _, id := range users {
		if id <= 0 {
			return conversation.Conversation{}, fmt.Errorf("%w: invalid user id %d", socialhub_errors.ErrValidation, id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if len(members) < 2 {
		return conversation.Conversation{}, fmt.Errorf("%w: a group needs at least one other member", socialhub_errors.ErrValidation)
	}

	now := s.now().UTC()
	conv := conversation.Conversation{
		Type:      conversation.KindGroup,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if name != "" {
		conv.Name = &name
	}
	if err := s.repo.CreateWithMembers(ctx, &conv, members); err != nil {
		return conversation.Conversation{}, fmt.Errorf("%w: %v", socialhub_errors.ErrPersistence, err)
	}

	s.log.WithContext(ctx).Info("group conversation created",
		zap.Int64("conversation_id", conv.ID),
		zap.Int64("user_id", creator),
		zap.Int("members", len(members)),
	)
	return conv, nil
}

// ListForUser returns the user's conversations, most recently active first.
func (s *ConversationService) ListForUser(ctx context.Context, userID int64, limit int) ([]ConversationSummary, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id is required", socialhub_errors.ErrValidation)
	}
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}

	convs, err := s.repo.GetUserConversations(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summary := ConversationSummary{Conversation: c, MemberIDs: c.MemberIDs()}
		last, err := s.messageRepo.GetLatestMessage(ctx, c.ID)
		switch {
		case err == nil:
			summary.LastMessage = &last
		case errors.Is(err, socialhub_errors.ErrNotFound):
		default:
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// History returns up to limit messages older than beforeID (0 for the
// newest page) in ascending order. Only members may read.
func (s *ConversationService) History(ctx context.Context, userID, conversationID, beforeID int64, limit int) ([]message.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if beforeID < 0 {
		return nil, fmt.Errorf("%w: invalid cursor", socialhub_errors.ErrValidation)
	}
	if err := s.access.CanViewConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.messageRepo.GetConversationMessages(ctx, conversationID, beforeID, limit)
}

// Rename changes the display name of a group. Private conversations have
// no name.
func (s *ConversationService) Rename(ctx context.Context, userID, conversationID int64, name string) (conversation.Conversation, error) {
	name, err := normalizeName(name)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if name == "" {
		return conversation.Conversation{}, fmt.Errorf("%w: name is required", socialhub_errors.ErrValidation)
	}
	if err := s.access.CanViewConversation(ctx, userID, conversationID); err != nil {
		return conversation.Conversation{}, err
	}

	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if conv.IsPrivate() {
		return conversation.Conversation{}, fmt.Errorf("%w: private conversations cannot be renamed", socialhub_errors.ErrValidation)
	}
	if err := s.repo.UpdateName(ctx, conversationID, name); err != nil {
		return conversation.Conversation{}, err
	}
	return s.repo.GetByID(ctx, conversationID)
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxConversationName {
		return "", fmt.Errorf("%w: name longer than %d characters", socialhub_errors.ErrValidation, MaxConversationName)
	}
	return name, nil
}
