package repository

import (
	"context"
	"errors"
	"time"

	"saccoguard/internal/model"

	"gorm.io/gorm"
)

var (
	ErrAlertNotFound        = errors.New("fraud alert not found")
	ErrAlertAlreadyResolved = errors.New("fraud alert already resolved")
)

// AlertFilter 告警列表筛选条件，Resolved 为 nil 表示不过滤
type AlertFilter struct {
	MemberID int64
	Severity string
	Type     string
	Resolved *bool
}

// SeverityCount 按级别统计的未处理告警数
type SeverityCount struct {
	Severity string `json:"severity"`
	Count    int64  `json:"count"`
}

type FraudAlertRepository struct {
	db *gorm.DB
}

func NewFraudAlertRepository(db *gorm.DB) *FraudAlertRepository {
	return &FraudAlertRepository{db: db}
}

// CreateBatch 一次 INSERT 写入整批告警
func (r *FraudAlertRepository) CreateBatch(ctx context.Context, alerts []*model.FraudAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&alerts).Error
}

func (r *FraudAlertRepository) GetByID(ctx context.Context, id int64) (*model.FraudAlert, error) {
	var alert model.FraudAlert
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return &alert, nil
}

func (r *FraudAlertRepository) ListByTransactionID(ctx context.Context, transactionID int64) ([]*model.FraudAlert, error) {
	var alerts []*model.FraudAlert
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("id ASC").
		Find(&alerts).Error
	return alerts, err
}

func (r *FraudAlertRepository) List(ctx context.Context, filter AlertFilter, page, pageSize int) ([]*model.FraudAlert, int64, error) {
	var alerts []*model.FraudAlert
	var total int64

	query := r.db.WithContext(ctx).Model(&model.FraudAlert{})
	if filter.MemberID > 0 {
		query = query.Where("member_id = ?", filter.MemberID)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&alerts).Error

	return alerts, total, err
}

// Resolve 将未处理告警标记为已处理
func (r *FraudAlertRepository) Resolve(ctx context.Context, id int64, resolvedBy, note string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.FraudAlert{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]interface{}{
			"resolved":        true,
			"resolved_by":     resolvedBy,
			"resolution_note": note,
			"resolved_at":     &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrAlertAlreadyResolved
}

// CountUnresolvedBySeverity 看板统计
func (r *FraudAlertRepository) CountUnresolvedBySeverity(ctx context.Context) ([]SeverityCount, error) {
	var counts []SeverityCount
	err := r.db.WithContext(ctx).
		Model(&model.FraudAlert{}).
		Select("severity, COUNT(*) AS count").
		Where("resolved = ?", false).
		Group("severity").
		Scan(&counts).Error
	return counts, err
}
