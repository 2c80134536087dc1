package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"saccoguard/internal/config"
	"saccoguard/internal/fraud"
	"saccoguard/internal/infrastructure/cache"
	"saccoguard/internal/model"
	"saccoguard/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FraudEvaluator 反欺诈评分器
type FraudEvaluator interface {
	Evaluate(ctx context.Context, memberID, transactionID int64, txType string, amount decimal.Decimal, createdAt time.Time) (*fraud.Result, error)
}

// scoringStore 评分收尾所需的持久化能力
type scoringStore interface {
	ListAlertsByTransaction(ctx context.Context, transactionID int64) ([]*model.FraudAlert, error)
	FlagTransaction(ctx context.Context, transactionID int64) error
	// CompleteScoring 在同一个数据库事务中记录评分时间并写入告警事件（event 可为空）
	CompleteScoring(ctx context.Context, transactionID int64, scoredAt time.Time, event *model.OutboxMessage) error
}

// FraudMonitor 串起一次完整的评分流程：
// 评分 -> 同一事务内记录评分时间和告警事件 -> 刷新看板缓存
// 同步交易链路和补偿任务共用
type FraudMonitor struct {
	evaluator    FraudEvaluator
	store        scoringStore
	summaryCache *cache.JSONCache
	topic        string
	now          func() time.Time
	logger       *slog.Logger
}

func NewFraudMonitor(db *gorm.DB, evaluator FraudEvaluator, summaryCache *cache.JSONCache, cfg *config.Config, logger *slog.Logger) *FraudMonitor {
	return newFraudMonitor(newGormScoringStore(db), evaluator, summaryCache, cfg.Kafka.Topic.FraudAlert, logger)
}

func newFraudMonitor(store scoringStore, evaluator FraudEvaluator, summaryCache *cache.JSONCache, topic string, logger *slog.Logger) *FraudMonitor {
	return &FraudMonitor{
		evaluator:    evaluator,
		store:        store,
		summaryCache: summaryCache,
		topic:        topic,
		now:          time.Now,
		logger:       logger.With("component", "fraud_monitor"),
	}
}

// TransactionFlaggedEvent 投递到 Kafka 的告警事件
type TransactionFlaggedEvent struct {
	EventType     string          `json:"event_type"`
	TransactionID int64           `json:"transaction_id"`
	Reference     string          `json:"reference"`
	MemberID      int64           `json:"member_id"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Severity      string          `json:"severity"` // 最高告警级别
	Alerts        []fraud.Alert   `json:"alerts"`
	FlaggedAt     time.Time       `json:"flagged_at"`
}

// Score 对已提交的交易评分
// 任一步失败都返回错误，scored_at 保持为空，由补偿任务重试
func (m *FraudMonitor) Score(ctx context.Context, trans *model.Transaction) (*fraud.Result, error) {
	result, err := m.evaluate(ctx, trans)
	if err != nil {
		return nil, err
	}

	now := m.now()
	var event *model.OutboxMessage
	if result.Flagged {
		event, err = m.flaggedEvent(trans, result, now)
		if err != nil {
			return nil, err
		}
	}

	err = m.store.CompleteScoring(ctx, trans.ID, now, event)
	switch {
	case errors.Is(err, repository.ErrTransactionAlreadyScored):
		// 同步链路与补偿任务并发评分，另一方已写入事件
		m.logger.Info("transaction already scored", "transaction_id", trans.ID)
	case err != nil:
		return nil, fmt.Errorf("complete scoring: %w", err)
	default:
		trans.ScoredAt = &now
	}

	if !result.Flagged {
		return result, nil
	}
	trans.Status = model.TransactionStatusFlagged

	if m.summaryCache != nil {
		if err := m.summaryCache.Delete(ctx, alertSummaryCacheKey); err != nil {
			m.logger.Warn("invalidate alert summary cache failed", "error", err)
		}
	}

	return result, nil
}

// evaluate 上次评分已写入告警但没有收尾时，沿用已有告警，不再重复写入
func (m *FraudMonitor) evaluate(ctx context.Context, trans *model.Transaction) (*fraud.Result, error) {
	existing, err := m.store.ListAlertsByTransaction(ctx, trans.ID)
	if err != nil {
		return nil, fmt.Errorf("list existing alerts: %w", err)
	}
	if len(existing) == 0 {
		return m.evaluator.Evaluate(ctx, trans.MemberID, trans.ID, trans.Type, trans.Amount, trans.CreatedAt)
	}

	if err := m.store.FlagTransaction(ctx, trans.ID); err != nil {
		return nil, fmt.Errorf("flag transaction: %w", err)
	}
	m.logger.Info("resuming scoring from stored alerts", "transaction_id", trans.ID, "alerts", len(existing))

	alerts := make([]fraud.Alert, 0, len(existing))
	for _, row := range existing {
		alerts = append(alerts, fraud.Alert{
			Type:        row.Type,
			Severity:    row.Severity,
			Description: row.Description,
		})
	}
	return &fraud.Result{Flagged: true, Alerts: alerts}, nil
}

func (m *FraudMonitor) flaggedEvent(trans *model.Transaction, result *fraud.Result, flaggedAt time.Time) (*model.OutboxMessage, error) {
	payload, err := json.Marshal(TransactionFlaggedEvent{
		EventType:     model.EventTypeTransactionFlagged,
		TransactionID: trans.ID,
		Reference:     trans.Reference,
		MemberID:      trans.MemberID,
		Type:          trans.Type,
		Amount:        trans.Amount,
		Severity:      highestSeverity(result.Alerts),
		Alerts:        result.Alerts,
		FlaggedAt:     flaggedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return &model.OutboxMessage{
		EventType:  model.EventTypeTransactionFlagged,
		MessageKey: strconv.FormatInt(trans.MemberID, 10),
		Topic:      m.topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}, nil
}

func highestSeverity(alerts []fraud.Alert) string {
	highest := ""
	for _, a := range alerts {
		if model.SeverityRank(a.Severity) > model.SeverityRank(highest) {
			highest = a.Severity
		}
	}
	return highest
}

// gormScoringStore 基于 MySQL 的 scoringStore 实现
type gormScoringStore struct {
	db              *gorm.DB
	transactionRepo *repository.TransactionRepository
	alertRepo       *repository.FraudAlertRepository
	outboxRepo      *repository.OutboxRepository
}

func newGormScoringStore(db *gorm.DB) *gormScoringStore {
	return &gormScoringStore{
		db:              db,
		transactionRepo: repository.NewTransactionRepository(db),
		alertRepo:       repository.NewFraudAlertRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

func (s *gormScoringStore) ListAlertsByTransaction(ctx context.Context, transactionID int64) ([]*model.FraudAlert, error) {
	return s.alertRepo.ListByTransactionID(ctx, transactionID)
}

func (s *gormScoringStore) FlagTransaction(ctx context.Context, transactionID int64) error {
	return s.transactionRepo.UpdateStatus(ctx, transactionID, model.TransactionStatusFlagged)
}

// CompleteScoring 评分时间与告警事件同一事务提交
func (s *gormScoringStore) CompleteScoring(ctx context.Context, transactionID int64, scoredAt time.Time, event *model.OutboxMessage) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.transactionRepo.MarkScored(ctx, tx, transactionID, scoredAt); err != nil {
			return err
		}
		if event == nil {
			return nil
		}
		return s.outboxRepo.Create(ctx, tx, event)
	})
}
