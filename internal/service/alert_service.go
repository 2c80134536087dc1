package service

import (
	"context"
	"log/slog"

	"saccoguard/internal/infrastructure/cache"
	"saccoguard/internal/model"
	"saccoguard/internal/repository"

	"gorm.io/gorm"
)

const alertSummaryCacheKey = "sacco:dashboard:alert_summary"

// AlertSummary 看板上未处理告警按级别的分布
type AlertSummary struct {
	Unresolved int64                      `json:"unresolved"`
	BySeverity []repository.SeverityCount `json:"by_severity"`
}

type AlertService struct {
	alertRepo    *repository.FraudAlertRepository
	summaryCache *cache.JSONCache
	logger       *slog.Logger
}

func NewAlertService(db *gorm.DB, summaryCache *cache.JSONCache, logger *slog.Logger) *AlertService {
	return &AlertService{
		alertRepo:    repository.NewFraudAlertRepository(db),
		summaryCache: summaryCache,
		logger:       logger.With("component", "alert"),
	}
}

func (s *AlertService) ListAlerts(ctx context.Context, filter repository.AlertFilter, page, pageSize int) ([]*model.FraudAlert, int64, error) {
	return s.alertRepo.List(ctx, filter, page, pageSize)
}

func (s *AlertService) GetAlert(ctx context.Context, id int64) (*model.FraudAlert, error) {
	return s.alertRepo.GetByID(ctx, id)
}

// ResolveAlert 人工处理告警，不会改变流水的 FLAGGED 状态
func (s *AlertService) ResolveAlert(ctx context.Context, id int64, resolvedBy, note string) (*model.FraudAlert, error) {
	if err := s.alertRepo.Resolve(ctx, id, resolvedBy, note); err != nil {
		return nil, err
	}
	s.invalidateSummary(ctx)

	s.logger.Info("alert resolved", "alert_id", id, "resolved_by", resolvedBy)
	return s.alertRepo.GetByID(ctx, id)
}

// Summary 看板统计，优先读缓存
func (s *AlertService) Summary(ctx context.Context) (*AlertSummary, error) {
	if s.summaryCache != nil {
		var cached AlertSummary
		hit, err := s.summaryCache.Get(ctx, alertSummaryCacheKey, &cached)
		if err != nil {
			s.logger.Warn("read alert summary cache failed", "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	counts, err := s.alertRepo.CountUnresolvedBySeverity(ctx)
	if err != nil {
		return nil, err
	}
	summary := buildAlertSummary(counts)

	if s.summaryCache != nil {
		if err := s.summaryCache.Set(ctx, alertSummaryCacheKey, summary); err != nil {
			s.logger.Warn("write alert summary cache failed", "error", err)
		}
	}
	return summary, nil
}

// buildAlertSummary 补齐没有告警的级别，按 CRITICAL -> LOW 排列
func buildAlertSummary(counts []repository.SeverityCount) *AlertSummary {
	bySeverity := make(map[string]int64, len(counts))
	for _, c := range counts {
		bySeverity[c.Severity] += c.Count
	}

	summary := &AlertSummary{BySeverity: make([]repository.SeverityCount, 0, len(model.Severities))}
	for i := len(model.Severities) - 1; i >= 0; i-- {
		severity := model.Severities[i]
		summary.BySeverity = append(summary.BySeverity, repository.SeverityCount{
			Severity: severity,
			Count:    bySeverity[severity],
		})
		summary.Unresolved += bySeverity[severity]
	}
	return summary
}

func (s *AlertService) invalidateSummary(ctx context.Context) {
	if s.summaryCache == nil {
		return
	}
	if err := s.summaryCache.Delete(ctx, alertSummaryCacheKey); err != nil {
		s.logger.Warn("invalidate alert summary cache failed", "error", err)
	}
}
