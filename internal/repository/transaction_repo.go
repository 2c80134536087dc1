package repository

import (
	"context"
	"errors"
	"time"

	"saccoguard/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionStatusInvalid = errors.New("transaction status transition not allowed")
	ErrDuplicateTransaction     = errors.New("transaction with this request id already exists")
	ErrTransactionAlreadyScored = errors.New("transaction already scored")
)

// transactionStatuses 所有流水状态，用于反查可流转到目标状态的来源状态
var transactionStatuses = []string{
	model.TransactionStatusPending,
	model.TransactionStatusCompleted,
	model.TransactionStatusFailed,
	model.TransactionStatusFlagged,
}

// TransactionFilter 流水列表筛选条件
type TransactionFilter struct {
	MemberID int64
	Type     string
	Status   string
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create 写入流水，request_id 重复时返回 ErrDuplicateTransaction
func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(trans).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateTransaction
	}
	return err
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// GetByRequestID 用于幂等校验，不存在时返回 nil, nil
func (r *TransactionRepository) GetByRequestID(ctx context.Context, requestID string) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trans, nil
}

func (r *TransactionRepository) List(ctx context.Context, filter TransactionFilter, page, pageSize int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Transaction{})
	if filter.MemberID > 0 {
		query = query.Where("member_id = ?", filter.MemberID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// CountBetween 统计社员在 [since, until] 内创建的流水笔数，两端都包含
func (r *TransactionRepository) CountBetween(ctx context.Context, memberID int64, since, until time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("member_id = ? AND created_at >= ? AND created_at <= ?", memberID, since, until).
		Count(&count).Error
	return count, err
}

// SumAmountsBetween 汇总社员在 [since, until] 内创建的流水金额，excludeID 指定的流水不计入
func (r *TransactionRepository) SumAmountsBetween(ctx context.Context, memberID int64, since, until time.Time, excludeID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	row := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("member_id = ? AND created_at >= ? AND created_at <= ? AND id <> ?", memberID, since, until, excludeID).
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

// UpdateStatus 更新流水状态
// 目标状态已生效时视为成功，重复标记 FLAGGED 不会报错
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id int64, toStatus string) error {
	var fromStatuses []string
	for _, from := range transactionStatuses {
		if model.CanTransactionTransitionTo(from, toStatus) {
			fromStatuses = append(fromStatuses, from)
		}
	}
	if len(fromStatuses) == 0 {
		return ErrTransactionStatusInvalid
	}

	result := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Update("status", toStatus)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == toStatus {
		return nil
	}
	return ErrTransactionStatusInvalid
}

// MarkScored 记录评分完成时间，只对未评分的流水生效
// 已被其他流程评分时返回 ErrTransactionAlreadyScored
func (r *TransactionRepository) MarkScored(ctx context.Context, tx *gorm.DB, id int64, scoredAt time.Time) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND scored_at IS NULL", id).
		Update("scored_at", scoredAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionAlreadyScored
	}
	return nil
}

// ListUnscored 查询 before 之前创建、仍未完成评分的流水
// 包含已标记 FLAGGED 但评分未收尾（告警事件未写入）的流水
func (r *TransactionRepository) ListUnscored(ctx context.Context, before time.Time, limit int) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("status IN ? AND scored_at IS NULL AND created_at < ?",
			[]string{model.TransactionStatusCompleted, model.TransactionStatusFlagged}, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}
