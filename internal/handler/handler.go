package handler

import (
	"errors"
	"log/slog"
	"strconv"

	"saccoguard/internal/repository"
	"saccoguard/internal/service"
	"saccoguard/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	memberService      *service.MemberService
	transactionService *service.TransactionService
	alertService       *service.AlertService
	logger             *slog.Logger
}

// NewHandler 创建处理器实例
func NewHandler(memberService *service.MemberService, transactionService *service.TransactionService, alertService *service.AlertService, logger *slog.Logger) *Handler {
	return &Handler{
		memberService:      memberService,
		transactionService: transactionService,
		alertService:       alertService,
		logger:             logger,
	}
}

// parsePage 解析分页参数，非法值回落到默认值
func parsePage(c *gin.Context) (page, pageSize int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// parseIDParam 解析路径中的 :id
func parseIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "invalid id")
		return 0, false
	}
	return id, true
}

// parseOptionalInt64 解析可选的查询参数，缺省为 0
func parseOptionalInt64(c *gin.Context, key string) (int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		response.ParamError(c, "invalid "+key)
		return 0, false
	}
	return v, true
}

var businessErrorCodes = []struct {
	err  error
	code int
}{
	{repository.ErrMemberNotFound, response.CodeMemberNotFound},
	{repository.ErrMemberExists, response.CodeMemberExists},
	{service.ErrMemberSuspended, response.CodeMemberSuspended},
	{repository.ErrInsufficientBalance, response.CodeInsufficientBalance},
	{repository.ErrLoanOverpayment, response.CodeLoanOverpayment},
	{repository.ErrTransactionNotFound, response.CodeTransactionNotFound},
	{repository.ErrAlertNotFound, response.CodeAlertNotFound},
	{repository.ErrAlertAlreadyResolved, response.CodeAlertAlreadyResolved},
	{service.ErrSystemBusy, response.CodeSystemBusy},
	{repository.ErrOptimisticLock, response.CodeSystemBusy},
	{service.ErrInvalidTransactionType, response.CodeParamError},
	{service.ErrInvalidAmount, response.CodeParamError},
	{service.ErrInvalidMemberStatus, response.CodeParamError},
}

// writeError 业务错误映射为对应错误码，其余按服务端错误处理
func (h *Handler) writeError(c *gin.Context, err error) {
	for _, be := range businessErrorCodes {
		if errors.Is(err, be.err) {
			response.BusinessError(c, be.code, be.err.Error())
			return
		}
	}

	h.logger.Error("request failed",
		"path", c.FullPath(),
		"request_id", c.GetString(requestIDKey),
		"error", err,
	)
	response.ServerError(c, "internal server error")
}
