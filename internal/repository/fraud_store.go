package repository

import (
	"context"
	"time"

	"saccoguard/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FraudStore 为反欺诈评分提供所需的查询与写入能力
type FraudStore struct {
	memberRepo      *MemberRepository
	transactionRepo *TransactionRepository
	alertRepo       *FraudAlertRepository
}

func NewFraudStore(db *gorm.DB) *FraudStore {
	return &FraudStore{
		memberRepo:      NewMemberRepository(db),
		transactionRepo: NewTransactionRepository(db),
		alertRepo:       NewFraudAlertRepository(db),
	}
}

func (s *FraudStore) CountTransactions(ctx context.Context, memberID int64, since, until time.Time) (int64, error) {
	return s.transactionRepo.CountBetween(ctx, memberID, since, until)
}

func (s *FraudStore) SumTransactionAmounts(ctx context.Context, memberID int64, since, until time.Time, excludeTransactionID int64) (decimal.Decimal, error) {
	return s.transactionRepo.SumAmountsBetween(ctx, memberID, since, until, excludeTransactionID)
}

func (s *FraudStore) GetMemberBalance(ctx context.Context, memberID int64) (decimal.Decimal, error) {
	return s.memberRepo.GetBalance(ctx, memberID)
}

func (s *FraudStore) InsertFraudAlerts(ctx context.Context, alerts []*model.FraudAlert) error {
	return s.alertRepo.CreateBatch(ctx, alerts)
}

func (s *FraudStore) SetTransactionStatus(ctx context.Context, transactionID int64, status string) error {
	return s.transactionRepo.UpdateStatus(ctx, transactionID, status)
}
