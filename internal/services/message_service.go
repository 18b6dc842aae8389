package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"socialhub/internal/domain/message"
	"socialhub/internal/events"
	"socialhub/internal/metrics"
	"socialhub/internal/proxy"
	"socialhub/internal/repository"
	socialhub_errors "socialhub/pkg/errors"
	"socialhub/pkg/logger"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	MaxMessageLength = 5000

	sideEffectTimeout = 10 * time.Second
	conversationLocks = 64
)

// Side effects whose failures are logged and counted, never returned.
const (
	TaskDeliveredReceipts   = "delivered_receipts"
	TaskMessageNotification = "message_notification"
	TaskReadReceipts        = "read_receipts"
)

type SendInput struct {
	ConversationID int64
	SenderID       int64
	Content        string
	Type           string
}

func (in SendInput) Validate() (message.Type, error) {
	if in.ConversationID <= 0 {
		return "", fmt.Errorf("%w: conversationId is required", socialhub_errors.ErrValidation)
	}
	if in.SenderID <= 0 {
		return "", fmt.Errorf("%w: sender is required", socialhub_errors.ErrValidation)
	}
	if strings.TrimSpace(in.Content) == "" {
		return "", fmt.Errorf("%w: content is empty", socialhub_errors.ErrValidation)
	}
	if utf8.RuneCountInString(in.Content) > MaxMessageLength {
		return "", fmt.Errorf("%w: content longer than %d characters", socialhub_errors.ErrValidation, MaxMessageLength)
	}
	t := message.Type(strings.ToLower(strings.TrimSpace(in.Type)))
	if t == "" {
		t = message.TypeText
	}
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown message type %q", socialhub_errors.ErrValidation, in.Type)
	}
	return t, nil
}

type MessageService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	receiptRepo      repository.ReceiptRepository
	access           *proxy.AccessControl
	emitter          Emitter
	presence         OnlineChecker
	limiter          MessageLimiter
	log              *logger.Logger
	now              func() time.Time

	// persist and broadcast run under the conversation's stripe so the room
	// sees messages in storage order
	locks [conversationLocks]sync.Mutex
}

func NewMessageService(
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	receiptRepo repository.ReceiptRepository,
	access *proxy.AccessControl,
	emitter Emitter,
	presence OnlineChecker,
	l *logger.Logger,
) *MessageService {
	if access == nil {
		access = proxy.NewAccessControl(conversationRepo)
	}
	return &MessageService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		receiptRepo:      receiptRepo,
		access:           access,
		emitter:          emitter,
		presence:         presence,
		log:              logger.OrNop(l).Named("messages"),
		now:              time.Now,
	}
}

// WithLimiter enables per-user send throttling.
func (s *MessageService) WithLimiter(limiter MessageLimiter) *MessageService {
	s.limiter = limiter
	return s
}

// Send validates, persists and broadcasts a chat message, then runs the
// delivery side effects. Only validation, authorization and the storage
// write can fail the call.
func (s *MessageService) Send(ctx context.Context, in SendInput) (message.Message, error) {
	msgType, err := in.Validate()
	if err != nil {
		return message.Message{}, err
	}
	if err := s.checkRate(ctx, in.SenderID); err != nil {
		return message.Message{}, err
	}
	if err := s.access.CanSendMessage(ctx, in.SenderID, in.ConversationID); err != nil {
		return message.Message{}, err
	}

	msg, err := s.persistAndBroadcast(ctx, message.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		Type:           msgType,
	})
	if err != nil {
		return message.Message{}, err
	}

	s.runSideEffects(ctx, msg)
	return msg, nil
}

func (s *MessageService) checkRate(ctx context.Context, userID int64) error {
	if s.limiter == nil {
		return nil
	}
	res, err := s.limiter.AllowMessage(ctx, userID)
	if err != nil {
		// fail open
		s.log.WithContext(ctx).Warn("message rate limit check failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	if !res.Allowed {
		return fmt.Errorf("%w: retry in %s", socialhub_errors.ErrRateLimited, res.ResetIn)
	}
	return nil
}

func (s *MessageService) persistAndBroadcast(ctx context.Context, msg message.Message) (message.Message, error) {
	lock := s.lockFor(msg.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	msg.CreatedAt = s.now().UTC()
	if err := s.messageRepo.Create(ctx, &msg); err != nil {
		s.log.WithContext(ctx).Error("persist message failed",
			zap.Int64("conversation_id", msg.ConversationID),
			zap.Int64("sender_id", msg.SenderID),
			zap.Error(err),
		)
		return message.Message{}, fmt.Errorf("%w: %v", socialhub_errors.ErrPersistence, err)
	}
	metrics.MessagesPersistedTotal.WithLabelValues(string(msg.Type)).Inc()

	if err := s.conversationRepo.Touch(ctx, msg.ConversationID, msg.CreatedAt); err != nil {
		s.log.WithContext(ctx).Warn("touch conversation failed",
			zap.Int64("conversation_id", msg.ConversationID),
			zap.Error(err),
		)
	}

	s.emitter.Emit(events.ConversationRoom(msg.ConversationID), events.EventReceiveMessage, msg)
	return msg, nil
}

func (s *MessageService) lockFor(conversationID int64) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(conversationID, 10)))
	return &s.locks[h.Sum32()%conversationLocks]
}

type sideEffect struct {
	name string
	run  func(ctx context.Context) error
}

// runSideEffects executes the non-critical tasks concurrently and gathers
// their failures. A failure is logged and counted, never returned.
func (s *MessageService) runSideEffects(ctx context.Context, msg message.Message) error {
	// side effects outlive the caller's context
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	log := s.log.WithContext(ctx).With(
		zap.Int64("conversation_id", msg.ConversationID),
		zap.Int64("message_id", msg.ID),
	)

	memberIDs, err := s.conversationRepo.GetMemberIDs(ctx, msg.ConversationID)
	if err != nil {
		metrics.SideEffectFailuresTotal.WithLabelValues(TaskDeliveredReceipts).Inc()
		metrics.SideEffectFailuresTotal.WithLabelValues(TaskMessageNotification).Inc()
		log.Error("load members for side effects failed", zap.Error(err))
		return err
	}
	recipients := make([]int64, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id != msg.SenderID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	tasks := []sideEffect{
		{name: TaskDeliveredReceipts, run: func(ctx context.Context) error {
			return s.markDelivered(ctx, msg, recipients)
		}},
		{name: TaskMessageNotification, run: func(ctx context.Context) error {
			s.notifyRecipients(msg, recipients)
			return nil
		}},
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	for _, task := range tasks {
		g.Go(func() error {
			if err := task.run(ctx); err != nil {
				metrics.SideEffectFailuresTotal.WithLabelValues(task.name).Inc()
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", task.name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		log.Warn("message side effects failed", zap.Errors("errors", multierr.Errors(errs)))
	}
	return errs
}

// markDelivered writes a delivered receipt per recipient. When the bulk
// insert fails each recipient is retried alone so one bad row cannot block
// the rest.
func (s *MessageService) markDelivered(ctx context.Context, msg message.Message, recipients []int64) error {
	at := s.now().UTC()
	receipts := make([]message.Receipt, 0, len(recipients))
	for _, id := range recipients {
		receipts = append(receipts, message.Receipt{
			MessageID: msg.ID,
			UserID:    id,
			Status:    message.ReceiptDelivered,
			UpdatedAt: at,
		})
	}

	bulkErr := s.receiptRepo.BulkCreateDelivered(ctx, receipts)
	if bulkErr == nil {
		metrics.ReceiptsWrittenTotal.WithLabelValues(string(message.ReceiptDelivered)).Add(float64(len(receipts)))
		return nil
	}
	s.log.WithContext(ctx).Warn("bulk delivered receipts failed, retrying per member",
		zap.Int64("message_id", msg.ID),
		zap.Error(bulkErr),
	)

	var errs error
	for _, id := range recipients {
		if err := s.receiptRepo.CreateDelivered(ctx, msg.ID, id, at); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("user %d: %w", id, err))
			continue
		}
		metrics.ReceiptsWrittenTotal.WithLabelValues(string(message.ReceiptDelivered)).Inc()
	}
	return errs
}

// notifyRecipients pushes a message_notification to the personal room of
// every recipient that is online right now.
func (s *MessageService) notifyRecipients(msg message.Message, recipients []int64) {
	payload := events.MessageNotificationEvent{ConversationID: msg.ConversationID, Message: msg}
	for _, id := range recipients {
		if s.presence != nil && !s.presence.IsOnline(id) {
			continue
		}
		s.emitter.Emit(events.UserRoom(id), events.EventMessageNotification, payload)
	}
}
