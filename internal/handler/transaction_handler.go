package handler

import (
	"saccoguard/internal/repository"
	"saccoguard/internal/service"
	"saccoguard/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreateTransactionRequest 交易请求
type CreateTransactionRequest struct {
	RequestID   string          `json:"request_id" binding:"required,max=64"` // 幂等ID，客户端生成
	MemberID    int64           `json:"member_id" binding:"required,gt=0"`
	Type        string          `json:"type" binding:"required,oneof=DEPOSIT WITHDRAWAL LOAN_DISBURSEMENT LOAN_REPAYMENT"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" binding:"max=256"`
}

// CreateTransaction 存款/取款/放款/还款
// POST /api/v1/transactions
//
// 交易提交后同步执行反欺诈评分，响应中带回 flagged 和 alerts；
// 评分失败不影响交易，scored=false
func (h *Handler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	// 金额精确到分，取整后必须大于 0
	if !req.Amount.Round(2).IsPositive() {
		response.ParamError(c, "amount must be at least 0.01")
		return
	}

	result, err := h.transactionService.CreateTransaction(c.Request.Context(), &service.CreateTransactionRequest{
		RequestID:   req.RequestID,
		MemberID:    req.MemberID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, result)
}

// GetTransaction 查询流水详情（含告警）
// GET /api/v1/transactions/:id
func (h *Handler) GetTransaction(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	result, err := h.transactionService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, result)
}

// ListTransactions 流水列表
// GET /api/v1/transactions?member_id=1&type=DEPOSIT&status=FLAGGED&page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	memberID, ok := parseOptionalInt64(c, "member_id")
	if !ok {
		return
	}
	page, pageSize := parsePage(c)

	filter := repository.TransactionFilter{
		MemberID: memberID,
		Type:     c.Query("type"),
		Status:   c.Query("status"),
	}

	transactions, total, err := h.transactionService.ListTransactions(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Page(c, transactions, total, page, pageSize)
}
