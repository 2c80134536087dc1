package fraud

import (
	"fmt"
	"strings"
	"time"

	"saccoguard/internal/model"

	"github.com/shopspring/decimal"
)

// 评分阈值。当前版本为固定常量，不从风控策略配置读取
var (
	LargeDepositThreshold    = decimal.NewFromInt(500_000)
	LargeWithdrawalThreshold = decimal.NewFromInt(200_000)
	LargeLoanThreshold       = decimal.NewFromInt(1_000_000)
	DailyLimitThreshold      = decimal.NewFromInt(1_000_000)
	NearTotalWithdrawalRatio = decimal.RequireFromString("0.9")
)

const (
	RapidTransactionCount  = 5
	RapidTransactionWindow = 60 * time.Minute
)

// ruleInput 单次评分所需的全部数据，查询完成后一次性组装
type ruleInput struct {
	Type   string
	Amount decimal.Decimal

	// 近 60 分钟内的流水笔数，包含当前这笔
	RecentCount int64
	// 当日零点以来其他流水的金额合计，不含当前这笔
	DailySum decimal.Decimal
	// 取款已入账后的储蓄余额，仅取款时有值
	Balance decimal.Decimal
}

// evaluateRules 依次执行所有规则，每条规则最多产生一条告警，互不短路
func evaluateRules(in ruleInput) []Alert {
	alerts := make([]Alert, 0)

	if in.Type == model.TransactionTypeDeposit && in.Amount.GreaterThanOrEqual(LargeDepositThreshold) {
		alerts = append(alerts, Alert{
			Type:     model.AlertTypeLargeDeposit,
			Severity: model.SeverityHigh,
			Description: fmt.Sprintf("Large deposit of %s meets the threshold of %s",
				formatAmount(in.Amount), formatAmount(LargeDepositThreshold)),
		})
	}

	if in.Type == model.TransactionTypeWithdrawal && in.Amount.GreaterThanOrEqual(LargeWithdrawalThreshold) {
		alerts = append(alerts, Alert{
			Type:     model.AlertTypeLargeWithdrawal,
			Severity: model.SeverityHigh,
			Description: fmt.Sprintf("Large withdrawal of %s meets the threshold of %s",
				formatAmount(in.Amount), formatAmount(LargeWithdrawalThreshold)),
		})
	}

	if in.RecentCount >= RapidTransactionCount {
		alerts = append(alerts, Alert{
			Type:     model.AlertTypeRapidTransactions,
			Severity: model.SeverityMedium,
			Description: fmt.Sprintf("%d transactions within the last %d minutes (threshold %d)",
				in.RecentCount, int(RapidTransactionWindow.Minutes()), RapidTransactionCount),
		})
	}

	if in.Type == model.TransactionTypeWithdrawal {
		// 余额已扣减，加回本次金额还原取款前余额
		priorBalance := in.Balance.Add(in.Amount)
		if priorBalance.IsPositive() {
			ratio := in.Amount.Div(priorBalance)
			if ratio.GreaterThanOrEqual(NearTotalWithdrawalRatio) {
				alerts = append(alerts, Alert{
					Type:     model.AlertTypeNearTotalWithdrawal,
					Severity: model.SeverityCritical,
					Description: fmt.Sprintf("Withdrawal of %s is %s of the prior balance %s (threshold %s)",
						formatAmount(in.Amount), formatPercent(ratio),
						formatAmount(priorBalance), formatPercent(NearTotalWithdrawalRatio)),
				})
			}
		}
	}

	if in.Type == model.TransactionTypeLoanDisbursement && in.Amount.GreaterThanOrEqual(LargeLoanThreshold) {
		alerts = append(alerts, Alert{
			Type:     model.AlertTypeLargeLoan,
			Severity: model.SeverityHigh,
			Description: fmt.Sprintf("Loan disbursement of %s meets the threshold of %s",
				formatAmount(in.Amount), formatAmount(LargeLoanThreshold)),
		})
	}

	dailyTotal := in.DailySum.Add(in.Amount)
	if dailyTotal.GreaterThanOrEqual(DailyLimitThreshold) {
		alerts = append(alerts, Alert{
			Type:     model.AlertTypeDailyLimitExceeded,
			Severity: model.SeverityHigh,
			Description: fmt.Sprintf("Daily total of %s (%s earlier today + %s now) reaches the daily limit of %s",
				formatAmount(dailyTotal), formatAmount(in.DailySum),
				formatAmount(in.Amount), formatAmount(DailyLimitThreshold)),
		})
	}

	return alerts
}

// formatAmount 保留两位小数并加千分位，例如 1234567.5 -> 1,234,567.50
func formatAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + "." + fracPart
}

// formatPercent 0.9047 -> 90.5%
func formatPercent(ratio decimal.Decimal) string {
	return ratio.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}
