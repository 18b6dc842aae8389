package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"socialhub/internal/domain/conversation"
	"socialhub/internal/domain/message"
	"socialhub/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens an in-memory sqlite database private to t with the schema
// migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps the shared in-memory database alive and
	// serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repository.InitSchema(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// TestHelper creates fixtures directly through gorm.
type TestHelper struct {
	t  *testing.T
	db *gorm.DB
}

func NewTestHelper(t *testing.T, db *gorm.DB) *TestHelper {
	return &TestHelper{t: t, db: db}
}

// CreateConversation inserts a conversation of kind with the given members.
func (h *TestHelper) CreateConversation(kind conversation.Kind, members ...int64) conversation.Conversation {
	h.t.Helper()

	now := time.Now().UTC()
	conv := conversation.Conversation{Type: kind, CreatedAt: now, UpdatedAt: now}
	if kind == conversation.KindPrivate && len(members) == 2 {
		key := conversation.PairKeyFor(members[0], members[1])
		conv.PairKey = &key
	}
	repo := repository.NewConversationRepository(h.db)
	if err := repo.CreateWithMembers(h.t.Context(), &conv, members); err != nil {
		h.t.Fatalf("create conversation: %v", err)
	}
	return conv
}

// CreateMessage inserts a text message at the given time.
func (h *TestHelper) CreateMessage(conversationID, senderID int64, content string, at time.Time) message.Message {
	h.t.Helper()

	m := message.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           message.TypeText,
		CreatedAt:      at.UTC(),
	}
	if err := h.db.Create(&m).Error; err != nil {
		h.t.Fatalf("create message: %v", err)
	}
	return m
}
