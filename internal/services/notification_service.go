package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"socialhub/internal/domain/notification"
	"socialhub/internal/events"
	"socialhub/internal/metrics"
	"socialhub/internal/repository"
	socialhub_errors "socialhub/pkg/errors"
	"socialhub/pkg/logger"

	"go.uber.org/zap"
)

// NotificationFanout pushes already persisted notifications to every live
// session of the receiver.
type NotificationFanout struct {
	emitter  Emitter
	presence OnlineChecker
	log      *logger.Logger
}

func NewNotificationFanout(emitter Emitter, presence OnlineChecker, l *logger.Logger) *NotificationFanout {
	return &NotificationFanout{
		emitter:  emitter,
		presence: presence,
		log:      logger.OrNop(l).Named("notifications"),
	}
}

// Deliver emits new_notification to the receiver's personal room and
// reports whether the receiver was online. Offline receivers are skipped
// silently; they read the stored row later.
func (f *NotificationFanout) Deliver(ctx context.Context, n notification.Notification) bool {
	if !f.presence.IsOnline(n.ReceiverID) {
		metrics.NotificationsTotal.WithLabelValues("offline").Inc()
		return false
	}

	f.emitter.Emit(events.UserRoom(n.ReceiverID), events.EventNewNotification, events.NewNotificationEvent{
		ID:      n.ID,
		Type:    n.Type,
		Content: n.Content,
		Sender: events.NotificationSender{
			ID:       n.SenderID,
			Username: n.SenderName,
		},
		CreatedAt: n.CreatedAt,
		Metadata:  n.RawMetadata(),
	})
	metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
	f.log.WithContext(ctx).Debug("notification delivered",
		zap.Int64("notification_id", n.ID),
		zap.Int64("receiver_id", n.ReceiverID),
		zap.String("type", n.Type),
	)
	return true
}

// NotificationService is the entry point for the friendship, like and
// comment handlers: store the notification, then hand it to the fanout.
type NotificationService struct {
	repo   repository.NotificationRepository
	fanout *NotificationFanout
	log    *logger.Logger
	now    func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository, fanout *NotificationFanout, l *logger.Logger) *NotificationService {
	return &NotificationService{
		repo:   repo,
		fanout: fanout,
		log:    logger.OrNop(l).Named("notifications"),
		now:    time.Now,
	}
}

type NotifyInput struct {
	ReceiverID int64
	SenderID   int64
	SenderName string
	Type       string
	Content    string
	Metadata   string
}

// Notify stores and delivers a notification. Self-notifications are
// dropped and reported as (nil, false, nil).
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*notification.Notification, bool, error) {
	if in.ReceiverID <= 0 || in.SenderID <= 0 {
		return nil, false, fmt.Errorf("%w: receiver and sender are required", socialhub_errors.ErrValidation)
	}
	in.Type = strings.TrimSpace(in.Type)
	if in.Type == "" {
		return nil, false, fmt.Errorf("%w: type is required", socialhub_errors.ErrValidation)
	}
	if in.ReceiverID == in.SenderID {
		return nil, false, nil
	}

	n := &notification.Notification{
		ReceiverID: in.ReceiverID,
		SenderID:   in.SenderID,
		Type:       in.Type,
		Content:    in.Content,
		Metadata:   in.Metadata,
		CreatedAt:  s.now().UTC(),
		SenderName: in.SenderName,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, false, fmt.Errorf("%w: %v", socialhub_errors.ErrPersistence, err)
	}

	return n, s.fanout.Deliver(ctx, *n), nil
}
