package repository

import (
	"fmt"

	"socialhub/internal/domain/conversation"
	"socialhub/internal/domain/message"
	"socialhub/internal/domain/notification"

	"gorm.io/gorm"
)

// Models lists every table owned by the realtime layer.
func Models() []interface{} {
	return []interface{}{
		&conversation.Conversation{},
		&conversation.Member{},
		&message.Message{},
		&message.Receipt{},
		&notification.Notification{},
	}
}

// InitSchema creates or updates the tables through gorm auto-migration.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}
