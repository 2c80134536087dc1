package repository

import (
	"context"
	"errors"

	"saccoguard/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMemberNotFound      = errors.New("member not found")
	ErrInsufficientBalance = errors.New("insufficient savings balance")
	ErrLoanOverpayment     = errors.New("repayment exceeds outstanding loan")
	ErrOptimisticLock      = errors.New("member was modified concurrently, please retry")
	ErrMemberExists        = errors.New("member with this national id already exists")
)

// MemberFilter 社员列表筛选条件
type MemberFilter struct {
	Status  string
	Keyword string // 匹配姓名、社员号、手机号
}

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// Create 身份证号重复时返回 ErrMemberExists
func (r *MemberRepository) Create(ctx context.Context, member *model.Member) error {
	err := r.db.WithContext(ctx).Create(member).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrMemberExists
	}
	return err
}

func (r *MemberRepository) GetByID(ctx context.Context, id int64) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// GetByIDForUpdate 在事务内加行锁读取社员
func (r *MemberRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Member, error) {
	var member model.Member
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// GetBalance 只读取储蓄余额
func (r *MemberRepository) GetBalance(ctx context.Context, id int64) (decimal.Decimal, error) {
	member, err := r.GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return member.Balance, nil
}

// UpdateBalances 按版本号更新储蓄余额与贷款余额
func (r *MemberRepository) UpdateBalances(ctx context.Context, tx *gorm.DB, member *model.Member, balance, loanBalance decimal.Decimal) error {
	result := tx.WithContext(ctx).
		Model(&model.Member{}).
		Where("id = ? AND version = ?", member.ID, member.Version).
		Updates(map[string]interface{}{
			"balance":      balance,
			"loan_balance": loanBalance,
			"version":      gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}

	member.Balance = balance
	member.LoanBalance = loanBalance
	member.Version++
	return nil
}

func (r *MemberRepository) List(ctx context.Context, filter MemberFilter, page, pageSize int) ([]*model.Member, int64, error) {
	var members []*model.Member
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Member{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		query = query.Where("full_name LIKE ? OR member_no LIKE ? OR phone LIKE ?", like, like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&members).Error

	return members, total, err
}

func (r *MemberRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.Member{}).
		Where("id = ?", id).
		Update("status", status).Error
}
