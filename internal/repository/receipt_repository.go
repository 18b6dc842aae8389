package repository

import (
	"context"
	"errors"
	"time"

	"socialhub/internal/domain/message"
	socialhub_errors "socialhub/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresReceiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &PostgresReceiptRepository{db: db}
}

var receiptKey = []clause.Column{{Name: "message_id"}, {Name: "user_id"}}

func (r *PostgresReceiptRepository) BulkCreateDelivered(ctx context.Context, receipts []message.Receipt) error {
	if len(receipts) == 0 {
		return nil
	}
	for i := range receipts {
		receipts[i].Status = message.ReceiptDelivered
	}
	// a delivered receipt never overwrites an existing row, so a read
	// status cannot regress
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: receiptKey, DoNothing: true}).
		Create(&receipts).Error
}

func (r *PostgresReceiptRepository) CreateDelivered(ctx context.Context, messageID, userID int64, at time.Time) error {
	return r.BulkCreateDelivered(ctx, []message.Receipt{{
		MessageID: messageID,
		UserID:    userID,
		UpdatedAt: at,
	}})
}

func (r *PostgresReceiptRepository) MarkRead(ctx context.Context, messageID, userID int64, at time.Time) error {
	receipt := message.Receipt{
		MessageID: messageID,
		UserID:    userID,
		Status:    message.ReceiptRead,
		UpdatedAt: at,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   receiptKey,
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Neq{Column: clause.Column{Table: message.Receipt{}.TableName(), Name: "status"}, Value: message.ReceiptRead},
			}},
		}).
		Create(&receipt).Error
}

func (r *PostgresReceiptRepository) GetReceipt(ctx context.Context, messageID, userID int64) (message.Receipt, error) {
	var receipt message.Receipt
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&receipt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Receipt{}, socialhub_errors.ErrNotFound
		}
		return message.Receipt{}, err
	}
	return receipt, nil
}

func (r *PostgresReceiptRepository) GetMessageReceipts(ctx context.Context, messageID int64) ([]message.Receipt, error) {
	var receipts []message.Receipt
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("user_id ASC").
		Find(&receipts).Error
	if err != nil {
		return nil, err
	}
	return receipts, nil
}
