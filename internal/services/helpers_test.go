package services

import (
	"sync"
	"testing"

	"socialhub/internal/presence"
	"socialhub/internal/proxy"
	"socialhub/internal/repository"
	"socialhub/internal/testutil"

	"gorm.io/gorm"
)

type emitted struct {
	room    string
	event   string
	payload any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *recordingEmitter) Emit(room, event string, payload any) {
	e.mu.Lock()
	e.events = append(e.events, emitted{room: room, event: event, payload: payload})
	e.mu.Unlock()
}

func (e *recordingEmitter) byEvent(event string) []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emitted
	for _, ev := range e.events {
		if ev.event == event {
			out = append(out, ev)
		}
	}
	return out
}

func (e *recordingEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

type sessionHandle string

func (h sessionHandle) ID() string { return string(h) }

type env struct {
	db       *gorm.DB
	helper   *testutil.TestHelper
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	rcptRepo repository.ReceiptRepository
	notRepo  repository.NotificationRepository
	access   *proxy.AccessControl
	emitter  *recordingEmitter
	registry *presence.Registry
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	convRepo := repository.NewConversationRepository(db)
	return &env{
		db:       db,
		helper:   testutil.NewTestHelper(t, db),
		convRepo: convRepo,
		msgRepo:  repository.NewMessageRepository(db),
		rcptRepo: repository.NewReceiptRepository(db),
		notRepo:  repository.NewNotificationRepository(db),
		access:   proxy.NewAccessControl(convRepo),
		emitter:  &recordingEmitter{},
		registry: presence.NewRegistry(nil),
	}
}

func (e *env) online(userID int64, sessionID string) {
	e.registry.Register(userID, sessionHandle(sessionID))
}

func (e *env) messageService() *MessageService {
	return NewMessageService(e.convRepo, e.msgRepo, e.rcptRepo, e.access, e.emitter, e.registry, nil)
}

func (e *env) receiptService() *ReceiptService {
	return NewReceiptService(e.msgRepo, e.rcptRepo, e.access, e.emitter, nil)
}

func (e *env) conversationService() *ConversationService {
	return NewConversationService(e.convRepo, e.msgRepo, e.access, nil)
}
