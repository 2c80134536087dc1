//go:build integration

package service

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"saccoguard/internal/fraud"
	"saccoguard/internal/model"
	"saccoguard/internal/repository"
	"saccoguard/internal/testutil"
	"saccoguard/pkg/idgen"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	mysql, err := testutil.NewMySQLContainer(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "mysql container: %v\n", err)
		os.Exit(1)
	}
	testDB = mysql.DB

	code := m.Run()
	mysql.Terminate()
	os.Exit(code)
}

type failingEvaluator struct{}

func (failingEvaluator) Evaluate(context.Context, int64, int64, string, decimal.Decimal, time.Time) (*fraud.Result, error) {
	return nil, fmt.Errorf("count recent transactions: connection reset")
}

func newIntegrationService(t *testing.T, evaluator FraudEvaluator) *TransactionService {
	t.Helper()
	ids, err := idgen.New(2)
	require.NoError(t, err)
	monitor := newFraudMonitor(newGormScoringStore(testDB), evaluator, nil, "sacco.fraud.alert", discardLogger())
	return newTransactionService(newGormLedger(testDB), monitor, nil, 10*time.Second, ids, discardLogger())
}

func newRealEvaluator() FraudEvaluator {
	return fraud.NewScorer(repository.NewFraudStore(testDB),
		fraud.WithLocation(time.Local),
		fraud.WithLogger(discardLogger()),
	)
}

func seedMember(t *testing.T, balance int64) *model.Member {
	t.Helper()
	m := &model.Member{
		MemberNo:    "MBR" + uuid.NewString()[:12],
		FullName:    "Wanjiru Test",
		NationalID:  uuid.NewString()[:20],
		Balance:     decimal.NewFromInt(balance),
		LoanBalance: decimal.Zero,
		Status:      model.MemberStatusActive,
	}
	require.NoError(t, repository.NewMemberRepository(testDB).Create(context.Background(), m))
	return m
}

func post(t *testing.T, svc *TransactionService, memberID int64, txType string, amount int64) *TransactionResult {
	t.Helper()
	result, err := svc.CreateTransaction(context.Background(), &CreateTransactionRequest{
		RequestID: uuid.NewString(),
		MemberID:  memberID,
		Type:      txType,
		Amount:    decimal.NewFromInt(amount),
	})
	require.NoError(t, err)
	return result
}

func countOutbox(t *testing.T, transactionID int64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, testDB.Model(&model.OutboxMessage{}).
		Where("event_type = ? AND payload LIKE ?", model.EventTypeTransactionFlagged, fmt.Sprintf(`%%"transaction_id":%d,%%`, transactionID)).
		Count(&n).Error)
	return n
}

func TestIntegration_FirstLargeDepositFlagsOnce(t *testing.T) {
	svc := newIntegrationService(t, newRealEvaluator())
	member := seedMember(t, 50_000)

	result := post(t, svc, member.ID, model.TransactionTypeDeposit, 600_000)

	assert.True(t, result.Scored)
	assert.True(t, result.Flagged)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, model.AlertTypeLargeDeposit, result.Alerts[0].Type)

	stored, err := repository.NewTransactionRepository(testDB).GetByID(context.Background(), result.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusFlagged, stored.Status)
	assert.NotNil(t, stored.ScoredAt)
	assert.Equal(t, "650000.00", stored.BalanceAfter.StringFixed(2))
	assert.Equal(t, int64(1), countOutbox(t, stored.ID))
}

func TestIntegration_FifthTransactionInWindowCountsItself(t *testing.T) {
	svc := newIntegrationService(t, newRealEvaluator())
	member := seedMember(t, 10_000)

	for i := 0; i < 4; i++ {
		result := post(t, svc, member.ID, model.TransactionTypeDeposit, 100)
		assert.False(t, result.Flagged)
	}

	result := post(t, svc, member.ID, model.TransactionTypeDeposit, 100)
	assert.True(t, result.Flagged)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, model.AlertTypeRapidTransactions, result.Alerts[0].Type)
}

func TestIntegration_NearTotalWithdrawalReadsDebitedBalance(t *testing.T) {
	svc := newIntegrationService(t, newRealEvaluator())
	member := seedMember(t, 10_500)

	result := post(t, svc, member.ID, model.TransactionTypeWithdrawal, 9_500)

	assert.True(t, result.Flagged)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, model.AlertTypeNearTotalWithdrawal, result.Alerts[0].Type)
	assert.Equal(t, model.SeverityCritical, result.Alerts[0].Severity)
}

func TestIntegration_ScoringFailureKeepsTransactionCompleted(t *testing.T) {
	svc := newIntegrationService(t, failingEvaluator{})
	member := seedMember(t, 50_000)

	result := post(t, svc, member.ID, model.TransactionTypeDeposit, 600_000)
	assert.False(t, result.Scored)
	assert.False(t, result.Flagged)

	stored, err := repository.NewTransactionRepository(testDB).GetByID(context.Background(), result.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusCompleted, stored.Status)
	assert.Nil(t, stored.ScoredAt)

	// 补偿任务稍后用真实评分器补上
	monitor := newFraudMonitor(newGormScoringStore(testDB), newRealEvaluator(), nil, "sacco.fraud.alert", discardLogger())
	rescored, err := monitor.Score(context.Background(), stored)
	require.NoError(t, err)
	assert.True(t, rescored.Flagged)
	assert.Equal(t, int64(1), countOutbox(t, stored.ID))
}

func TestIntegration_CompleteScoringRollsBackEventWhenAlreadyScored(t *testing.T) {
	ctx := context.Background()
	svc := newIntegrationService(t, newRealEvaluator())
	member := seedMember(t, 50_000)
	result := post(t, svc, member.ID, model.TransactionTypeDeposit, 600_000)
	require.Equal(t, int64(1), countOutbox(t, result.Transaction.ID))

	store := newGormScoringStore(testDB)
	event := &model.OutboxMessage{
		EventType:  model.EventTypeTransactionFlagged,
		MessageKey: "dup",
		Topic:      "sacco.fraud.alert",
		Payload:    fmt.Sprintf(`{"transaction_id":%d,"dup":true}`, result.Transaction.ID),
		Status:     model.OutboxStatusPending,
	}
	err := store.CompleteScoring(ctx, result.Transaction.ID, time.Now(), event)

	assert.ErrorIs(t, err, repository.ErrTransactionAlreadyScored)
	assert.Equal(t, int64(1), countOutbox(t, result.Transaction.ID))
}
