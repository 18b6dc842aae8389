package services

import (
	"context"
	"fmt"
	"time"

	"socialhub/internal/domain/message"
	"socialhub/internal/events"
	"socialhub/internal/metrics"
	"socialhub/internal/proxy"
	"socialhub/internal/repository"
	socialhub_errors "socialhub/pkg/errors"
	"socialhub/pkg/logger"

	"go.uber.org/zap"
)

// MaxSeenBatch bounds the ids accepted by one message_seen event.
const MaxSeenBatch = 500

type ReceiptService struct {
	messageRepo repository.MessageRepository
	receiptRepo repository.ReceiptRepository
	access      *proxy.AccessControl
	emitter     Emitter
	log         *logger.Logger
	now         func() time.Time
}

func NewReceiptService(messageRepo repository.MessageRepository, receiptRepo repository.ReceiptRepository, access *proxy.AccessControl, emitter Emitter, l *logger.Logger) *ReceiptService {
	return &ReceiptService{
		messageRepo: messageRepo,
		receiptRepo: receiptRepo,
		access:      access,
		emitter:     emitter,
		log:         logger.OrNop(l).Named("receipts"),
		now:         time.Now,
	}
}

// MarkSeen records read receipts for the given messages and announces them
// to the conversation room with one message_seen. Ids of other
// conversations are dropped first; the rest are announced and returned
// even when some writes fail. Repeating the call leaves storage unchanged.
func (s *ReceiptService) MarkSeen(ctx context.Context, userID, conversationID int64, messageIDs []int64) ([]int64, error) {
	if conversationID <= 0 {
		return nil, fmt.Errorf("%w: conversationId is required", socialhub_errors.ErrValidation)
	}
	ids := uniqueIDs(messageIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: messageIds is empty", socialhub_errors.ErrValidation)
	}
	if len(ids) > MaxSeenBatch {
		return nil, fmt.Errorf("%w: at most %d messageIds per event", socialhub_errors.ErrValidation, MaxSeenBatch)
	}
	if err := s.access.CanViewConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	log := s.log.WithContext(ctx).With(
		zap.Int64("user_id", userID),
		zap.Int64("conversation_id", conversationID),
	)

	valid, err := s.messageRepo.FilterConversationMessageIDs(ctx, conversationID, ids)
	if err != nil {
		return nil, err
	}
	if dropped := len(ids) - len(valid); dropped > 0 {
		log.Warn("message_seen ids outside conversation dropped", zap.Int("dropped", dropped))
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no messages of this conversation", socialhub_errors.ErrNotFound)
	}

	at := s.now().UTC()
	written := 0
	for _, id := range valid {
		// one failed row does not stop the batch or the broadcast
		if err := s.receiptRepo.MarkRead(ctx, id, userID, at); err != nil {
			log.Error("mark read failed", zap.Int64("message_id", id), zap.Error(err))
			continue
		}
		written++
	}
	if written > 0 {
		metrics.ReceiptsWrittenTotal.WithLabelValues(string(message.ReceiptRead)).Add(float64(written))
	}
	if failed := len(valid) - written; failed > 0 {
		metrics.SideEffectFailuresTotal.WithLabelValues(TaskReadReceipts).Add(float64(failed))
	}

	s.emitter.Emit(events.ConversationRoom(conversationID), events.EventMessageSeen, events.MessageSeenEvent{
		UserID:         userID,
		ConversationID: conversationID,
		MessageIDs:     valid,
	})
	return valid, nil
}

// uniqueIDs drops non-positive and repeated ids, keeping first-seen order.
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
