package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"saccoguard/internal/config"
	"saccoguard/internal/fraud"
	"saccoguard/internal/infrastructure/lock"
	"saccoguard/internal/model"
	"saccoguard/internal/repository"
	"saccoguard/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrMemberSuspended        = errors.New("member is suspended")
	ErrSystemBusy             = errors.New("system busy, please retry")
)

// ledgerStore 记账与流水查询所需的持久化能力
type ledgerStore interface {
	GetByRequestID(ctx context.Context, requestID string) (*model.Transaction, error)
	GetByID(ctx context.Context, id int64) (*model.Transaction, error)
	List(ctx context.Context, filter repository.TransactionFilter, page, pageSize int) ([]*model.Transaction, int64, error)
	ListAlerts(ctx context.Context, transactionID int64) ([]*model.FraudAlert, error)
	// Post 在一个数据库事务内锁定社员、变更余额并写入流水
	Post(ctx context.Context, trans *model.Transaction) error
}

// transactionScorer 交易提交后的反欺诈评分
type transactionScorer interface {
	Score(ctx context.Context, trans *model.Transaction) (*fraud.Result, error)
}

type TransactionService struct {
	ledger      ledgerStore
	scorer      transactionScorer
	redisClient *redis.Client
	lockTTL     time.Duration
	ids         *idgen.Snowflake
	logger      *slog.Logger
}

func NewTransactionService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, ids *idgen.Snowflake, monitor *FraudMonitor, logger *slog.Logger) *TransactionService {
	return newTransactionService(newGormLedger(db), monitor, redisClient, cfg.Business.MemberLockTTL(), ids, logger)
}

func newTransactionService(ledger ledgerStore, scorer transactionScorer, redisClient *redis.Client, lockTTL time.Duration, ids *idgen.Snowflake, logger *slog.Logger) *TransactionService {
	return &TransactionService{
		ledger:      ledger,
		scorer:      scorer,
		redisClient: redisClient,
		lockTTL:     lockTTL,
		ids:         ids,
		logger:      logger.With("component", "transaction"),
	}
}

type CreateTransactionRequest struct {
	RequestID   string
	MemberID    int64
	Type        string
	Amount      decimal.Decimal
	Description string
}

// TransactionResult 交易结果，附带反欺诈评分
// Scored=false 表示评分失败，交易本身已成功
type TransactionResult struct {
	Transaction *model.Transaction `json:"transaction"`
	Flagged     bool               `json:"flagged"`
	Scored      bool               `json:"scored"`
	Alerts      []fraud.Alert      `json:"alerts"`
	Replayed    bool               `json:"replayed"`
}

// applyTransaction 计算交易后的储蓄余额与贷款余额
func applyTransaction(member *model.Member, txType string, amount decimal.Decimal) (balance, loanBalance decimal.Decimal, err error) {
	balance, loanBalance = member.Balance, member.LoanBalance

	switch txType {
	case model.TransactionTypeDeposit:
		balance = balance.Add(amount)
	case model.TransactionTypeWithdrawal:
		if balance.LessThan(amount) {
			return balance, loanBalance, repository.ErrInsufficientBalance
		}
		balance = balance.Sub(amount)
	case model.TransactionTypeLoanDisbursement:
		// 放款直接入储蓄账户
		balance = balance.Add(amount)
		loanBalance = loanBalance.Add(amount)
	case model.TransactionTypeLoanRepayment:
		// 从储蓄账户扣款还贷
		if loanBalance.LessThan(amount) {
			return balance, loanBalance, repository.ErrLoanOverpayment
		}
		if balance.LessThan(amount) {
			return balance, loanBalance, repository.ErrInsufficientBalance
		}
		balance = balance.Sub(amount)
		loanBalance = loanBalance.Sub(amount)
	default:
		return balance, loanBalance, ErrInvalidTransactionType
	}
	return balance, loanBalance, nil
}

// CreateTransaction 处理一笔存款/取款/放款/还款
//
// 顺序不可调整：余额变更和流水在同一个数据库事务中提交，
// 提交之后才进行反欺诈评分（评分读取的是已扣减后的余额）。
func (s *TransactionService) CreateTransaction(ctx context.Context, req *CreateTransactionRequest) (*TransactionResult, error) {
	if !model.ValidTransactionType(req.Type) {
		return nil, ErrInvalidTransactionType
	}
	// 先按最小货币单位取整再校验，0.004 这类金额取整后为 0
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	// 幂等校验
	if existing, err := s.ledger.GetByRequestID(ctx, req.RequestID); err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	} else if existing != nil {
		return s.replay(ctx, existing)
	}

	if s.redisClient != nil {
		memberLock := lock.NewMemberLock(s.redisClient, req.MemberID, s.lockTTL)
		if err := memberLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			s.logger.Warn("acquire member lock failed", "key", memberLock.Key(), "error", err)
			return nil, fmt.Errorf("%w: %v", ErrSystemBusy, err)
		}
		defer memberLock.Unlock(context.Background())

		// 获取锁后再次检查幂等
		if existing, err := s.ledger.GetByRequestID(ctx, req.RequestID); err != nil {
			return nil, fmt.Errorf("query transaction: %w", err)
		} else if existing != nil {
			return s.replay(ctx, existing)
		}
	}

	trans := &model.Transaction{
		Reference:   s.ids.TransactionRef(),
		RequestID:   req.RequestID,
		MemberID:    req.MemberID,
		Type:        req.Type,
		Amount:      amount,
		Status:      model.TransactionStatusCompleted,
		Description: req.Description,
		// 与 datetime(3) 列精度一致，评分窗口上界才能包含本笔
		CreatedAt: time.Now().Truncate(time.Millisecond),
	}

	if err := s.ledger.Post(ctx, trans); err != nil {
		if errors.Is(err, repository.ErrDuplicateTransaction) {
			// 未加锁时并发的重复请求，以先提交的为准
			existing, qerr := s.ledger.GetByRequestID(ctx, req.RequestID)
			if qerr != nil {
				return nil, fmt.Errorf("query transaction: %w", qerr)
			}
			if existing != nil {
				return s.replay(ctx, existing)
			}
		}
		return nil, err
	}

	s.logger.Info("transaction completed",
		"reference", trans.Reference,
		"member_id", trans.MemberID,
		"type", trans.Type,
		"amount", trans.Amount.String(),
	)

	result := &TransactionResult{Transaction: trans, Alerts: []fraud.Alert{}}

	// 评分为尽力而为：失败不影响交易结果，由补偿任务兜底
	scored, err := s.scorer.Score(ctx, trans)
	if err != nil {
		s.logger.Warn("fraud scoring failed, transaction left unscored",
			"reference", trans.Reference,
			"error", err,
		)
		return result, nil
	}

	result.Scored = true
	result.Flagged = scored.Flagged
	result.Alerts = scored.Alerts
	return result, nil
}

func (s *TransactionService) replay(ctx context.Context, trans *model.Transaction) (*TransactionResult, error) {
	result, err := s.buildResult(ctx, trans)
	if err != nil {
		return nil, err
	}
	result.Replayed = true
	return result, nil
}

func (s *TransactionService) buildResult(ctx context.Context, trans *model.Transaction) (*TransactionResult, error) {
	rows, err := s.ledger.ListAlerts(ctx, trans.ID)
	if err != nil {
		return nil, err
	}

	alerts := make([]fraud.Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, fraud.Alert{
			Type:        row.Type,
			Severity:    row.Severity,
			Description: row.Description,
		})
	}

	return &TransactionResult{
		Transaction: trans,
		Flagged:     trans.Status == model.TransactionStatusFlagged,
		Scored:      trans.ScoredAt != nil,
		Alerts:      alerts,
	}, nil
}

// GetTransaction 查询流水及其告警
func (s *TransactionService) GetTransaction(ctx context.Context, id int64) (*TransactionResult, error) {
	trans, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.buildResult(ctx, trans)
}

func (s *TransactionService) ListTransactions(ctx context.Context, filter repository.TransactionFilter, page, pageSize int) ([]*model.Transaction, int64, error) {
	return s.ledger.List(ctx, filter, page, pageSize)
}

// gormLedger 基于 MySQL 的 ledgerStore 实现
type gormLedger struct {
	db              *gorm.DB
	memberRepo      *repository.MemberRepository
	transactionRepo *repository.TransactionRepository
	alertRepo       *repository.FraudAlertRepository
}

func newGormLedger(db *gorm.DB) *gormLedger {
	return &gormLedger{
		db:              db,
		memberRepo:      repository.NewMemberRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		alertRepo:       repository.NewFraudAlertRepository(db),
	}
}

func (l *gormLedger) GetByRequestID(ctx context.Context, requestID string) (*model.Transaction, error) {
	return l.transactionRepo.GetByRequestID(ctx, requestID)
}

func (l *gormLedger) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	return l.transactionRepo.GetByID(ctx, id)
}

func (l *gormLedger) List(ctx context.Context, filter repository.TransactionFilter, page, pageSize int) ([]*model.Transaction, int64, error) {
	return l.transactionRepo.List(ctx, filter, page, pageSize)
}

func (l *gormLedger) ListAlerts(ctx context.Context, transactionID int64) ([]*model.FraudAlert, error) {
	return l.alertRepo.ListByTransactionID(ctx, transactionID)
}

func (l *gormLedger) Post(ctx context.Context, trans *model.Transaction) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		member, err := l.memberRepo.GetByIDForUpdate(ctx, tx, trans.MemberID)
		if err != nil {
			return err
		}
		if !member.IsActive() {
			return ErrMemberSuspended
		}

		balance, loanBalance, err := applyTransaction(member, trans.Type, trans.Amount)
		if err != nil {
			return err
		}
		if err := l.memberRepo.UpdateBalances(ctx, tx, member, balance, loanBalance); err != nil {
			return err
		}

		trans.BalanceAfter = balance
		return l.transactionRepo.Create(ctx, tx, trans)
	})
}
