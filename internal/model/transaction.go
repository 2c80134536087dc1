package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeDeposit          = "DEPOSIT"           // 存款
	TransactionTypeWithdrawal       = "WITHDRAWAL"        // 取款
	TransactionTypeLoanDisbursement = "LOAN_DISBURSEMENT" // 放款
	TransactionTypeLoanRepayment    = "LOAN_REPAYMENT"    // 还款
)

// ValidTransactionType 判断交易类型是否合法
func ValidTransactionType(t string) bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal,
		TransactionTypeLoanDisbursement, TransactionTypeLoanRepayment:
		return true
	}
	return false
}

// ============================================================================
// 交易状态
// ============================================================================

const (
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusPending   = "PENDING"
	TransactionStatusFailed    = "FAILED"
	TransactionStatusFlagged   = "FLAGGED"
)

// ValidTransactionStatusTransitions 交易状态只允许单向流转
// FLAGGED 是终态，反欺诈标记后不会被撤销
var ValidTransactionStatusTransitions = map[string][]string{
	TransactionStatusPending:   {TransactionStatusCompleted, TransactionStatusFailed},
	TransactionStatusCompleted: {TransactionStatusFlagged},
}

func CanTransactionTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidTransactionStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// ============================================================================
// 交易流水实体
// ============================================================================

// Transaction 社员交易流水表
//
// 【重要】流水表设计原则：
// 1. 只追加，金额不修改，保证审计可追溯
// 2. 记录交易后余额，便于校验余额一致性
// 3. ScoredAt 为空表示反欺诈评分尚未完成，由补偿任务兜底
type Transaction struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Reference    string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference"`  // 流水号（全局唯一）
	RequestID    string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"` // 幂等ID
	MemberID     int64           `gorm:"index:idx_member_created,priority:1;not null" json:"member_id"`
	Type         string          `gorm:"type:varchar(32);index;not null" json:"type"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance_after"`
	Status       string          `gorm:"type:varchar(20);index;not null" json:"status"`
	Description  string          `gorm:"type:varchar(256)" json:"description"`
	ScoredAt     *time.Time      `gorm:"index" json:"scored_at"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index:idx_member_created,priority:2" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}
