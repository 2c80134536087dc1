package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saccoguard/internal/fraud"
	"saccoguard/internal/model"
	"saccoguard/internal/repository"
	"saccoguard/pkg/idgen"
)

// --- Fakes ---

type fakeLedger struct {
	calls *[]string

	byRequest map[string]*model.Transaction
	alerts    map[int64][]*model.FraudAlert
	postErr   error
	// 模拟并发请求抢先提交同一个 request_id
	racedBy *model.Transaction

	nextID int64
	posted []*model.Transaction
}

func newFakeLedger(calls *[]string) *fakeLedger {
	return &fakeLedger{
		calls:     calls,
		byRequest: make(map[string]*model.Transaction),
		alerts:    make(map[int64][]*model.FraudAlert),
		nextID:    100,
	}
}

func (f *fakeLedger) GetByRequestID(_ context.Context, requestID string) (*model.Transaction, error) {
	return f.byRequest[requestID], nil
}

func (f *fakeLedger) GetByID(_ context.Context, id int64) (*model.Transaction, error) {
	for _, trans := range f.byRequest {
		if trans.ID == id {
			return trans, nil
		}
	}
	return nil, repository.ErrTransactionNotFound
}

func (f *fakeLedger) List(_ context.Context, _ repository.TransactionFilter, _, _ int) ([]*model.Transaction, int64, error) {
	return f.posted, int64(len(f.posted)), nil
}

func (f *fakeLedger) ListAlerts(_ context.Context, transactionID int64) ([]*model.FraudAlert, error) {
	return f.alerts[transactionID], nil
}

func (f *fakeLedger) Post(_ context.Context, trans *model.Transaction) error {
	*f.calls = append(*f.calls, "post")
	if f.racedBy != nil {
		f.byRequest[f.racedBy.RequestID] = f.racedBy
		return repository.ErrDuplicateTransaction
	}
	if f.postErr != nil {
		return f.postErr
	}
	f.nextID++
	trans.ID = f.nextID
	trans.BalanceAfter = decimal.NewFromInt(1_000)
	f.byRequest[trans.RequestID] = trans
	f.posted = append(f.posted, trans)
	return nil
}

type fakeTransactionScorer struct {
	calls  *[]string
	result *fraud.Result
	err    error

	seen []model.Transaction
}

func (f *fakeTransactionScorer) Score(_ context.Context, trans *model.Transaction) (*fraud.Result, error) {
	*f.calls = append(*f.calls, "score")
	f.seen = append(f.seen, *trans)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestTransactionService(t *testing.T, ledger ledgerStore, scorer transactionScorer) *TransactionService {
	t.Helper()
	ids, err := idgen.New(1)
	require.NoError(t, err)
	return newTransactionService(ledger, scorer, nil, 10*time.Second, ids, discardLogger())
}

func depositRequest(requestID, amount string) *CreateTransactionRequest {
	return &CreateTransactionRequest{
		RequestID: requestID,
		MemberID:  11,
		Type:      model.TransactionTypeDeposit,
		Amount:    decimal.RequireFromString(amount),
	}
}

// --- Tests ---

func TestCreateTransaction_ScoresAfterCommit(t *testing.T) {
	var calls []string
	ledger := newFakeLedger(&calls)
	scorer := &fakeTransactionScorer{calls: &calls, result: &fraud.Result{
		Flagged: true,
		Alerts:  []fraud.Alert{{Type: model.AlertTypeLargeDeposit, Severity: model.SeverityHigh}},
	}}
	svc := newTestTransactionService(t, ledger, scorer)

	result, err := svc.CreateTransaction(context.Background(), depositRequest("req-1", "600000"))
	require.NoError(t, err)

	assert.Equal(t, []string{"post", "score"}, calls)
	require.Len(t, scorer.seen, 1)
	assert.NotZero(t, scorer.seen[0].ID)
	assert.Equal(t, model.TransactionStatusCompleted, scorer.seen[0].Status)

	assert.True(t, result.Scored)
	assert.True(t, result.Flagged)
	assert.False(t, result.Replayed)
	assert.Len(t, result.Alerts, 1)
}

func TestCreateTransaction_ScoringFailureIsBestEffort(t *testing.T) {
	var calls []string
	ledger := newFakeLedger(&calls)
	scorer := &fakeTransactionScorer{calls: &calls, err: errors.New("connection refused")}
	svc := newTestTransactionService(t, ledger, scorer)

	result, err := svc.CreateTransaction(context.Background(), depositRequest("req-1", "600000"))
	require.NoError(t, err)

	assert.False(t, result.Scored)
	assert.False(t, result.Flagged)
	assert.NotNil(t, result.Alerts)
	assert.Empty(t, result.Alerts)
	assert.Equal(t, model.TransactionStatusCompleted, result.Transaction.Status)
	assert.Nil(t, result.Transaction.ScoredAt)
	require.Len(t, ledger.posted, 1)
}

func TestCreateTransaction_AmountRoundedBeforeValidation(t *testing.T) {
	var calls []string
	ledger := newFakeLedger(&calls)
	scorer := &fakeTransactionScorer{calls: &calls, result: &fraud.Result{Alerts: []fraud.Alert{}}}
	svc := newTestTransactionService(t, ledger, scorer)

	_, err := svc.CreateTransaction(context.Background(), depositRequest("req-1", "0.004"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Empty(t, calls)

	result, err := svc.CreateTransaction(context.Background(), depositRequest("req-2", "12.345"))
	require.NoError(t, err)
	assert.Equal(t, "12.35", result.Transaction.Amount.StringFixed(2))
}

func TestCreateTransaction_CreatedAtMatchesColumnPrecision(t *testing.T) {
	var calls []string
	ledger := newFakeLedger(&calls)
	scorer := &fakeTransactionScorer{calls: &calls, result: &fraud.Result{Alerts: []fraud.Alert{}}}
	svc := newTestTransactionService(t, ledger, scorer)

	result, err := svc.CreateTransaction(context.Background(), depositRequest("req-1", "100"))
	require.NoError(t, err)

	createdAt := result.Transaction.CreatedAt
	assert.False(t, createdAt.IsZero())
	assert.True(t, createdAt.Equal(createdAt.Truncate(time.Millisecond)))
}

func TestCreateTransaction_ReplaysExistingRequest(t *testing.T) {
	var calls []string
	ledger := newFakeLedger(&calls)
	existing := &model.Transaction{ID: 7, RequestID: "req-1", Status: model.TransactionStatusFlagged}
	ledger.byRequest["req-1"] = existing
	ledger.alerts[7] = []*model.FraudAlert{{Type: model.AlertTypeLargeDeposit, Severity: model.SeverityHigh}}
	scorer := &fakeTransactionScorer{calls: &calls}
	svc := newTestTransactionService(t, ledger, scorer)

	result, err := svc.CreateTransaction(context.Background(), depositRequest("req-1", "600000"))
	require.NoError(t, err)

	assert.Empty(t, calls)
	assert.True(t, result.Replayed)
	assert.True(t, result.Flagged)
	assert.Same(t, existing, result.Transaction)
	require.Len(t, result.Alerts, 1)
}

func TestCreateTransaction_DuplicateRequestRaceReplays(t *testing.T) {
	var calls []string
	ledger := newFakeLedger(&calls)
	ledger.racedBy = &model.Transaction{ID: 8, RequestID: "req-1", Status: model.TransactionStatusCompleted}
	scorer := &fakeTransactionScorer{calls: &calls}
	svc := newTestTransactionService(t, ledger, scorer)

	result, err := svc.CreateTransaction(context.Background(), depositRequest("req-1", "100"))
	require.NoError(t, err)

	assert.Equal(t, []string{"post"}, calls)
	assert.True(t, result.Replayed)
	assert.Equal(t, int64(8), result.Transaction.ID)
}

func TestCreateTransaction_PostFailureSkipsScoring(t *testing.T) {
	var calls []string
	ledger := newFakeLedger(&calls)
	ledger.postErr = repository.ErrInsufficientBalance
	scorer := &fakeTransactionScorer{calls: &calls}
	svc := newTestTransactionService(t, ledger, scorer)

	req := depositRequest("req-1", "100")
	req.Type = model.TransactionTypeWithdrawal
	_, err := svc.CreateTransaction(context.Background(), req)

	assert.ErrorIs(t, err, repository.ErrInsufficientBalance)
	assert.Equal(t, []string{"post"}, calls)
}

func TestCreateTransaction_InvalidType(t *testing.T) {
	var calls []string
	svc := newTestTransactionService(t, newFakeLedger(&calls), &fakeTransactionScorer{calls: &calls})

	req := depositRequest("req-1", "100")
	req.Type = "TRANSFER"
	_, err := svc.CreateTransaction(context.Background(), req)

	assert.ErrorIs(t, err, ErrInvalidTransactionType)
	assert.Empty(t, calls)
}
