package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MemberStatusActive    = "ACTIVE"
	MemberStatusSuspended = "SUSPENDED"
)

// Member 社员表
// Balance 为储蓄余额，LoanBalance 为未还贷款本金
type Member struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberNo    string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"member_no"`
	FullName    string          `gorm:"type:varchar(128);not null" json:"full_name"`
	Phone       string          `gorm:"type:varchar(32);index" json:"phone"`
	NationalID  string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"national_id"`
	Balance     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	LoanBalance decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"loan_balance"`
	Status      string          `gorm:"type:varchar(20);index;not null;default:ACTIVE" json:"status"`
	Version     int             `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Member) TableName() string {
	return "member"
}

func (m *Member) IsActive() bool {
	return m.Status == MemberStatusActive
}
