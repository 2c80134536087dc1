package job

import (
	"context"
	"log/slog"
	"time"

	"saccoguard/internal/config"
	"saccoguard/internal/infrastructure/mq"
	"saccoguard/internal/model"
	"saccoguard/internal/repository"

	"gorm.io/gorm"
)

// outboxStore OutboxSender 依赖的存储能力
type outboxStore interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	RecordFailure(ctx context.Context, msg *model.OutboxMessage, errMsg string, maxRetry int) (bool, error)
}

// OutboxSender 轮询本地消息表，把告警事件投递到 Kafka
type OutboxSender struct {
	store     outboxStore
	publisher mq.Publisher
	maxRetry  int
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, cfg *config.Config, logger *slog.Logger) *OutboxSender {
	return newOutboxSender(repository.NewOutboxRepository(db), publisher, cfg.Business.MaxRetryCount, logger)
}

func newOutboxSender(store outboxStore, publisher mq.Publisher, maxRetry int, logger *slog.Logger) *OutboxSender {
	return &OutboxSender{
		store:     store,
		publisher: publisher,
		maxRetry:  maxRetry,
		interval:  500 * time.Millisecond,
		batchSize: 100,
		logger:    logger.With("job", "outbox_sender"),
	}
}

// Start 阻塞运行，直到 ctx 取消
func (s *OutboxSender) Start(ctx context.Context) {
	s.logger.Info("outbox sender started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("outbox sender stopped")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.store.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("query pending messages failed", "error", err)
		return
	}

	for _, msg := range messages {
		if ctx.Err() != nil {
			return
		}
		s.sendMessage(ctx, msg)
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	err := s.publisher.Publish(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.store.MarkSent(ctx, msg.ID); updateErr != nil {
			s.logger.Error("mark message sent failed", "id", msg.ID, "error", updateErr)
			return
		}
		s.logger.Debug("message sent", "id", msg.ID, "topic", msg.Topic, "key", msg.MessageKey)
		return
	}

	s.logger.Warn("message send failed", "id", msg.ID, "retry_count", msg.RetryCount, "error", err)

	failed, recordErr := s.store.RecordFailure(ctx, msg, err.Error(), s.maxRetry)
	if recordErr != nil {
		s.logger.Error("record send failure failed", "id", msg.ID, "error", recordErr)
		return
	}
	if failed {
		s.logger.Error("message exceeded max retries, marked failed", "id", msg.ID, "max_retry", s.maxRetry)
	}
}
