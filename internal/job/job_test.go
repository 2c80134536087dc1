package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saccoguard/internal/fraud"
	"saccoguard/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Outbox sender ---

type fakeOutboxStore struct {
	pending  []*model.OutboxMessage
	sent     []int64
	failures map[int64]int
	failed   []int64
}

func (f *fakeOutboxStore) GetPendingMessages(_ context.Context, limit int) ([]*model.OutboxMessage, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutboxStore) MarkSent(_ context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeOutboxStore) RecordFailure(_ context.Context, msg *model.OutboxMessage, _ string, maxRetry int) (bool, error) {
	if f.failures == nil {
		f.failures = make(map[int64]int)
	}
	f.failures[msg.ID]++
	msg.RetryCount++
	if msg.RetryCount >= maxRetry {
		f.failed = append(f.failed, msg.ID)
		return true, nil
	}
	return false, nil
}

type fakePublisher struct {
	failKeys  map[string]bool
	published []string
}

func (p *fakePublisher) Publish(_, key, _ string) error {
	if p.failKeys[key] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, key)
	return nil
}

func TestOutboxSender_ProcessPendingMessages(t *testing.T) {
	store := &fakeOutboxStore{pending: []*model.OutboxMessage{
		{ID: 1, Topic: "t", MessageKey: "11", Payload: "{}"},
		{ID: 2, Topic: "t", MessageKey: "12", Payload: "{}", RetryCount: 2},
		{ID: 3, Topic: "t", MessageKey: "13", Payload: "{}"},
	}}
	publisher := &fakePublisher{failKeys: map[string]bool{"12": true}}

	sender := newOutboxSender(store, publisher, 3, discardLogger())
	sender.processPendingMessages(context.Background())

	assert.Equal(t, []string{"11", "13"}, publisher.published)
	assert.Equal(t, []int64{1, 3}, store.sent)
	assert.Equal(t, 1, store.failures[2])
	assert.Equal(t, []int64{2}, store.failed)
}

// --- Scoring backfill ---

type fakeUnscoredSource struct {
	transactions []*model.Transaction
	before       time.Time
}

func (f *fakeUnscoredSource) ListUnscored(_ context.Context, before time.Time, _ int) ([]*model.Transaction, error) {
	f.before = before
	return f.transactions, nil
}

type fakeTransactionScorer struct {
	failRefs map[string]bool
	scored   []string
}

func (f *fakeTransactionScorer) Score(_ context.Context, trans *model.Transaction) (*fraud.Result, error) {
	if f.failRefs[trans.Reference] {
		return nil, errors.New("database unavailable")
	}
	f.scored = append(f.scored, trans.Reference)
	return &fraud.Result{Flagged: trans.Reference == "TXN-B", Alerts: []fraud.Alert{}}, nil
}

func TestScoringBackfillJob_RunOnce(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	source := &fakeUnscoredSource{transactions: []*model.Transaction{
		{ID: 1, Reference: "TXN-A"},
		{ID: 2, Reference: "TXN-B"},
		{ID: 3, Reference: "TXN-C"},
	}}
	scorer := &fakeTransactionScorer{failRefs: map[string]bool{"TXN-C": true}}

	job := newScoringBackfillJob(source, scorer, time.Minute, 2*time.Minute, discardLogger())
	job.now = func() time.Time { return now }

	scored := job.RunOnce(context.Background())

	require.Equal(t, 2, scored)
	assert.Equal(t, []string{"TXN-A", "TXN-B"}, scorer.scored)
	assert.True(t, now.Add(-2*time.Minute).Equal(source.before))
}

func TestScoringBackfillJob_StopsOnCancel(t *testing.T) {
	job := newScoringBackfillJob(&fakeUnscoredSource{}, &fakeTransactionScorer{}, 10*time.Millisecond, time.Minute, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not stop after cancel")
	}
}

// --- Runner ---

type slowStopJob struct {
	stopped chan struct{}
}

func (j *slowStopJob) Start(ctx context.Context) {
	<-ctx.Done()
	// 模拟收到取消时仍有一批消息在处理
	time.Sleep(50 * time.Millisecond)
	close(j.stopped)
}

func TestStartAll_WaitBlocksUntilJobsReturn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &slowStopJob{stopped: make(chan struct{})}
	b := &slowStopJob{stopped: make(chan struct{})}

	wait := StartAll(ctx, a, b)
	cancel()
	wait()

	for _, j := range []*slowStopJob{a, b} {
		select {
		case <-j.stopped:
		default:
			t.Fatal("wait returned before job finished")
		}
	}
}

func TestStartAll_NoJobs(t *testing.T) {
	wait := StartAll(context.Background())
	wait()
}
