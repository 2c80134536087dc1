package repository

import (
	"context"
	"time"
	"unicode/utf8"

	"saccoguard/internal/model"

	"gorm.io/gorm"
)

// maxLastErrorLength 与 last_error 列宽一致，按字符计
const maxLastErrorLength = 512

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(msg).Error
}

func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  model.OutboxStatusSent,
			"sent_at": &now,
		}).Error
}

// RecordFailure 记录一次投递失败，达到 maxRetry 后标记为 FAILED
// 返回消息是否已被标记为 FAILED
func (r *OutboxRepository) RecordFailure(ctx context.Context, msg *model.OutboxMessage, errMsg string, maxRetry int) (bool, error) {
	retryCount := msg.RetryCount + 1
	status := model.OutboxStatusPending
	if retryCount >= maxRetry {
		status = model.OutboxStatusFailed
	}
	errMsg = truncateRunes(errMsg, maxLastErrorLength)

	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", msg.ID).
		Updates(map[string]interface{}{
			"status":      status,
			"retry_count": retryCount,
			"last_error":  errMsg,
		}).Error
	if err != nil {
		return false, err
	}
	return status == model.OutboxStatusFailed, nil
}

// truncateRunes 按字符截断，不会截断多字节字符
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
