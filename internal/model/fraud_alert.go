package model

import (
	"time"
)

// 告警类型
const (
	AlertTypeLargeDeposit        = "LARGE_DEPOSIT"
	AlertTypeLargeWithdrawal     = "LARGE_WITHDRAWAL"
	AlertTypeRapidTransactions   = "RAPID_TRANSACTIONS"
	AlertTypeNearTotalWithdrawal = "NEAR_TOTAL_WITHDRAWAL"
	AlertTypeLargeLoan           = "LARGE_LOAN"
	AlertTypeDailyLimitExceeded  = "DAILY_LIMIT_EXCEEDED"
)

// 告警级别，仅用于排序展示，不做组合升级
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Severities 按从低到高排列
var Severities = []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// SeverityRank 返回级别序号，未知级别返回 -1
func SeverityRank(severity string) int {
	for i, s := range Severities {
		if s == severity {
			return i
		}
	}
	return -1
}

// FraudAlert 反欺诈告警表
// 每次评分批量写入，处理（resolve）由人工在控制台完成
type FraudAlert struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Type           string     `gorm:"type:varchar(32);index;not null" json:"type"`
	Severity       string     `gorm:"type:varchar(16);index;not null" json:"severity"`
	Description    string     `gorm:"type:varchar(512);not null" json:"description"`
	MemberID       int64      `gorm:"index;not null" json:"member_id"`
	TransactionID  int64      `gorm:"index;not null" json:"transaction_id"`
	Resolved       bool       `gorm:"index;not null;default:false" json:"resolved"`
	ResolvedBy     string     `gorm:"type:varchar(64)" json:"resolved_by,omitempty"`
	ResolutionNote string     `gorm:"type:varchar(512)" json:"resolution_note,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (FraudAlert) TableName() string {
	return "fraud_alert"
}
