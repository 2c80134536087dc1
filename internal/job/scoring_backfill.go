package job

import (
	"context"
	"log/slog"
	"time"

	"saccoguard/internal/config"
	"saccoguard/internal/fraud"
	"saccoguard/internal/model"
	"saccoguard/internal/repository"

	"gorm.io/gorm"
)

// unscoredSource 查询未完成评分的流水
type unscoredSource interface {
	ListUnscored(ctx context.Context, before time.Time, limit int) ([]*model.Transaction, error)
}

// transactionScorer 对单笔流水执行完整评分流程
type transactionScorer interface {
	Score(ctx context.Context, trans *model.Transaction) (*fraud.Result, error)
}

// ScoringBackfillJob 补偿任务：同步评分失败的流水在这里重新评分
// 只处理创建超过 delay 的流水，避免与正在进行的同步评分重叠
type ScoringBackfillJob struct {
	source    unscoredSource
	scorer    transactionScorer
	interval  time.Duration
	delay     time.Duration
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

func NewScoringBackfillJob(db *gorm.DB, scorer transactionScorer, cfg *config.Config, logger *slog.Logger) *ScoringBackfillJob {
	return newScoringBackfillJob(
		repository.NewTransactionRepository(db),
		scorer,
		cfg.Business.BackfillInterval(),
		cfg.Business.BackfillDelay(),
		logger,
	)
}

func newScoringBackfillJob(source unscoredSource, scorer transactionScorer, interval, delay time.Duration, logger *slog.Logger) *ScoringBackfillJob {
	return &ScoringBackfillJob{
		source:    source,
		scorer:    scorer,
		interval:  interval,
		delay:     delay,
		batchSize: 50,
		now:       time.Now,
		logger:    logger.With("job", "scoring_backfill"),
	}
}

// Start 阻塞运行，直到 ctx 取消
func (j *ScoringBackfillJob) Start(ctx context.Context) {
	j.logger.Info("scoring backfill started", "interval", j.interval.String(), "delay", j.delay.String())

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("scoring backfill stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce 处理一批未评分流水，返回成功评分的笔数
func (j *ScoringBackfillJob) RunOnce(ctx context.Context) int {
	transactions, err := j.source.ListUnscored(ctx, j.now().Add(-j.delay), j.batchSize)
	if err != nil {
		j.logger.Error("query unscored transactions failed", "error", err)
		return 0
	}
	if len(transactions) == 0 {
		return 0
	}

	j.logger.Info("found unscored transactions", "count", len(transactions))

	scored := 0
	for _, trans := range transactions {
		if ctx.Err() != nil {
			break
		}
		result, err := j.scorer.Score(ctx, trans)
		if err != nil {
			j.logger.Warn("backfill scoring failed", "reference", trans.Reference, "error", err)
			continue
		}
		scored++
		if result.Flagged {
			j.logger.Info("backfill flagged transaction", "reference", trans.Reference, "alerts", len(result.Alerts))
		}
	}

	j.logger.Info("backfill batch finished", "scored", scored, "total", len(transactions))
	return scored
}
