package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"socialhub/internal/domain/conversation"
	"socialhub/internal/domain/message"
	"socialhub/internal/events"
	"socialhub/internal/metrics"
	"socialhub/internal/repository"
	socialhub_errors "socialhub/pkg/errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMarkSeenIsIdempotent(t *testing.T) {
	e := newEnv(t)
	conv := e.helper.CreateConversation(conversation.KindPrivate, 1, 2)
	m1 := e.helper.CreateMessage(conv.ID, 1, "one", time.Now())
	m2 := e.helper.CreateMessage(conv.ID, 1, "two", time.Now())
	svc := e.receiptService()

	for i := 0; i < 2; i++ {
		ids, err := svc.MarkSeen(t.Context(), 2, conv.ID, []int64{m1.ID, m2.ID, m1.ID})
		if err != nil {
			t.Fatalf("mark seen #%d: %v", i, err)
		}
		if len(ids) != 2 {
			t.Fatalf("mark seen #%d wrote %v", i, ids)
		}
	}

	for _, id := range []int64{m1.ID, m2.ID} {
		receipts, err := e.rcptRepo.GetMessageReceipts(t.Context(), id)
		if err != nil {
			t.Fatalf("receipts: %v", err)
		}
		if len(receipts) != 1 || receipts[0].Status != message.ReceiptRead {
			t.Fatalf("message %d: unexpected receipts %+v", id, receipts)
		}
	}

	seen := e.emitter.byEvent(events.EventMessageSeen)
	if len(seen) != 2 {
		t.Fatalf("expected one message_seen per call, got %d", len(seen))
	}
	payload := seen[0].payload.(events.MessageSeenEvent)
	if seen[0].room != events.ConversationRoom(conv.ID) || payload.UserID != 2 || len(payload.MessageIDs) != 2 {
		t.Fatalf("unexpected message_seen: %+v", seen[0])
	}
}

func TestMarkSeenUpgradesDeliveredReceipt(t *testing.T) {
	e := newEnv(t)
	conv := e.helper.CreateConversation(conversation.KindPrivate, 1, 2)
	m := e.helper.CreateMessage(conv.ID, 1, "hi", time.Now())
	if err := e.rcptRepo.CreateDelivered(t.Context(), m.ID, 2, time.Now()); err != nil {
		t.Fatalf("delivered: %v", err)
	}

	if _, err := e.receiptService().MarkSeen(t.Context(), 2, conv.ID, []int64{m.ID}); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	r, err := e.rcptRepo.GetReceipt(t.Context(), m.ID, 2)
	if err != nil || r.Status != message.ReceiptRead {
		t.Fatalf("expected read: %+v %v", r, err)
	}
}

func TestMarkSeenDropsForeignMessages(t *testing.T) {
	e := newEnv(t)
	conv := e.helper.CreateConversation(conversation.KindPrivate, 1, 2)
	other := e.helper.CreateConversation(conversation.KindPrivate, 1, 3)
	mine := e.helper.CreateMessage(conv.ID, 1, "mine", time.Now())
	foreign := e.helper.CreateMessage(other.ID, 1, "foreign", time.Now())
	svc := e.receiptService()

	ids, err := svc.MarkSeen(t.Context(), 2, conv.ID, []int64{mine.ID, foreign.ID})
	if err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	if len(ids) != 1 || ids[0] != mine.ID {
		t.Fatalf("unexpected ids %v", ids)
	}
	if _, err := e.rcptRepo.GetReceipt(t.Context(), foreign.ID, 2); !errors.Is(err, socialhub_errors.ErrNotFound) {
		t.Fatalf("foreign message got a receipt: %v", err)
	}

	if _, err := svc.MarkSeen(t.Context(), 2, conv.ID, []int64{foreign.ID}); !errors.Is(err, socialhub_errors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkSeenRequiresMembershipAndIDs(t *testing.T) {
	e := newEnv(t)
	conv := e.helper.CreateConversation(conversation.KindPrivate, 1, 2)
	m := e.helper.CreateMessage(conv.ID, 1, "hi", time.Now())
	svc := e.receiptService()

	if _, err := svc.MarkSeen(t.Context(), 3, conv.ID, []int64{m.ID}); !errors.Is(err, socialhub_errors.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.MarkSeen(t.Context(), 2, conv.ID, nil); !errors.Is(err, socialhub_errors.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := svc.MarkSeen(t.Context(), 2, 0, []int64{m.ID}); !errors.Is(err, socialhub_errors.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if e.emitter.count() != 0 {
		t.Fatalf("rejected calls must not emit")
	}
}

// failingReadRepo rejects read receipts for the listed messages.
type failingReadRepo struct {
	repository.ReceiptRepository
	fail map[int64]bool
}

func (r failingReadRepo) MarkRead(ctx context.Context, messageID, userID int64, at time.Time) error {
	if r.fail[messageID] {
		return errors.New("row rejected")
	}
	return r.ReceiptRepository.MarkRead(ctx, messageID, userID, at)
}

func TestMarkSeenContinuesPastFailedReceipt(t *testing.T) {
	e := newEnv(t)
	conv := e.helper.CreateConversation(conversation.KindPrivate, 1, 2)
	m1 := e.helper.CreateMessage(conv.ID, 1, "one", time.Now())
	m2 := e.helper.CreateMessage(conv.ID, 1, "two", time.Now())
	m3 := e.helper.CreateMessage(conv.ID, 1, "three", time.Now())

	before := testutil.ToFloat64(metrics.SideEffectFailuresTotal.WithLabelValues(TaskReadReceipts))
	repo := failingReadRepo{ReceiptRepository: e.rcptRepo, fail: map[int64]bool{m2.ID: true}}
	svc := NewReceiptService(e.msgRepo, repo, e.access, e.emitter, nil)

	ids, err := svc.MarkSeen(t.Context(), 2, conv.ID, []int64{m1.ID, m2.ID, m3.ID})
	if err != nil {
		t.Fatalf("partial failure leaked to caller: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected every validated id back, got %v", ids)
	}

	for _, id := range []int64{m1.ID, m3.ID} {
		r, err := e.rcptRepo.GetReceipt(t.Context(), id, 2)
		if err != nil || r.Status != message.ReceiptRead {
			t.Fatalf("message %d: expected read, got %+v %v", id, r, err)
		}
	}
	if _, err := e.rcptRepo.GetReceipt(t.Context(), m2.ID, 2); !errors.Is(err, socialhub_errors.ErrNotFound) {
		t.Fatalf("failed message should have no receipt: %v", err)
	}

	seen := e.emitter.byEvent(events.EventMessageSeen)
	if len(seen) != 1 {
		t.Fatalf("expected exactly one message_seen, got %d", len(seen))
	}
	payload := seen[0].payload.(events.MessageSeenEvent)
	if len(payload.MessageIDs) != 3 || payload.MessageIDs[0] != m1.ID || payload.MessageIDs[1] != m2.ID || payload.MessageIDs[2] != m3.ID {
		t.Fatalf("message_seen should carry the full list, got %v", payload.MessageIDs)
	}

	after := testutil.ToFloat64(metrics.SideEffectFailuresTotal.WithLabelValues(TaskReadReceipts))
	if after-before != 1 {
		t.Fatalf("expected one counted failure, got %v", after-before)
	}
}

func TestMarkSeenAnnouncesWhenEveryWriteFails(t *testing.T) {
	e := newEnv(t)
	conv := e.helper.CreateConversation(conversation.KindPrivate, 1, 2)
	m1 := e.helper.CreateMessage(conv.ID, 1, "one", time.Now())
	m2 := e.helper.CreateMessage(conv.ID, 1, "two", time.Now())

	repo := failingReadRepo{ReceiptRepository: e.rcptRepo, fail: map[int64]bool{m1.ID: true, m2.ID: true}}
	svc := NewReceiptService(e.msgRepo, repo, e.access, e.emitter, nil)

	if _, err := svc.MarkSeen(t.Context(), 2, conv.ID, []int64{m1.ID, m2.ID}); err != nil {
		t.Fatalf("expected no error when writes fail, got %v", err)
	}
	seen := e.emitter.byEvent(events.EventMessageSeen)
	if len(seen) != 1 || len(seen[0].payload.(events.MessageSeenEvent).MessageIDs) != 2 {
		t.Fatalf("expected one message_seen with both ids, got %+v", seen)
	}
}
