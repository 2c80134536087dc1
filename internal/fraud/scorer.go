package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"saccoguard/internal/model"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ============================================================================
// 交易反欺诈评分
// ============================================================================
//
// 每笔交易落库（余额已变更）之后同步调用一次 Evaluate：
//
//   1. 并发查询：近 60 分钟笔数、当日累计金额、（取款时）当前余额
//      时间窗口以交易创建时间为准，补偿任务延迟评分时结果不变
//   2. 全部查询完成后执行所有规则，规则之间互不影响
//   3. 有告警：批量写入告警 -> 流水状态置为 FLAGGED
//      无告警：不做任何写入
//
// 查询或写入失败直接返回错误，不做重试；是否影响交易本身由调用方决定。
//
// ============================================================================

// Store 评分依赖的存储能力
type Store interface {
	CountTransactions(ctx context.Context, memberID int64, since, until time.Time) (int64, error)
	SumTransactionAmounts(ctx context.Context, memberID int64, since, until time.Time, excludeTransactionID int64) (decimal.Decimal, error)
	GetMemberBalance(ctx context.Context, memberID int64) (decimal.Decimal, error)
	InsertFraudAlerts(ctx context.Context, alerts []*model.FraudAlert) error
	SetTransactionStatus(ctx context.Context, transactionID int64, status string) error
}

// Alert 单条规则命中的结果
type Alert struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Result 评分结果
type Result struct {
	Flagged bool    `json:"flagged"`
	Alerts  []Alert `json:"alerts"`
}

type Scorer struct {
	store  Store
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
}

type Option func(*Scorer)

// WithClock 替换时钟，未传入交易时间时使用
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// WithLocation 指定计算"当日零点"所用的时区
func WithLocation(loc *time.Location) Option {
	return func(s *Scorer) { s.loc = loc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) { s.logger = logger }
}

func NewScorer(store Store, opts ...Option) *Scorer {
	s := &Scorer{
		store:  store,
		now:    time.Now,
		loc:    time.Local,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate 对一笔已落库的交易执行全部规则
// createdAt 为交易创建时间，统计窗口为 [createdAt-60m, createdAt] 和 [当日零点, createdAt]
func (s *Scorer) Evaluate(ctx context.Context, memberID, transactionID int64, txType string, amount decimal.Decimal, createdAt time.Time) (*Result, error) {
	at := createdAt
	if at.IsZero() {
		at = s.now()
	}
	at = at.In(s.loc)
	windowStart := at.Add(-RapidTransactionWindow)
	dayStart := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, s.loc)

	in := ruleInput{Type: txType, Amount: amount}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, err := s.store.CountTransactions(gctx, memberID, windowStart, at)
		if err != nil {
			return fmt.Errorf("count recent transactions: %w", err)
		}
		in.RecentCount = count
		return nil
	})
	g.Go(func() error {
		sum, err := s.store.SumTransactionAmounts(gctx, memberID, dayStart, at, transactionID)
		if err != nil {
			return fmt.Errorf("sum daily transactions: %w", err)
		}
		in.DailySum = sum
		return nil
	})
	if txType == model.TransactionTypeWithdrawal {
		g.Go(func() error {
			balance, err := s.store.GetMemberBalance(gctx, memberID)
			if err != nil {
				return fmt.Errorf("get member balance: %w", err)
			}
			in.Balance = balance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	alerts := evaluateRules(in)
	if len(alerts) == 0 {
		return &Result{Flagged: false, Alerts: alerts}, nil
	}

	rows := make([]*model.FraudAlert, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, &model.FraudAlert{
			Type:          a.Type,
			Severity:      a.Severity,
			Description:   a.Description,
			MemberID:      memberID,
			TransactionID: transactionID,
		})
	}

	if err := s.store.InsertFraudAlerts(ctx, rows); err != nil {
		return nil, fmt.Errorf("insert fraud alerts: %w", err)
	}
	if err := s.store.SetTransactionStatus(ctx, transactionID, model.TransactionStatusFlagged); err != nil {
		return nil, fmt.Errorf("flag transaction: %w", err)
	}

	s.logger.Warn("transaction flagged",
		"component", "fraud",
		"member_id", memberID,
		"transaction_id", transactionID,
		"type", txType,
		"amount", amount.String(),
		"alerts", len(alerts),
	)

	return &Result{Flagged: true, Alerts: alerts}, nil
}
