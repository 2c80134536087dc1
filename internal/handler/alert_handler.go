package handler

import (
	"strconv"

	"saccoguard/internal/repository"
	"saccoguard/pkg/response"

	"github.com/gin-gonic/gin"
)

// ListAlerts 告警列表
// GET /api/v1/alerts?member_id=1&severity=HIGH&type=LARGE_DEPOSIT&resolved=false
func (h *Handler) ListAlerts(c *gin.Context) {
	memberID, ok := parseOptionalInt64(c, "member_id")
	if !ok {
		return
	}

	filter := repository.AlertFilter{
		MemberID: memberID,
		Severity: c.Query("severity"),
		Type:     c.Query("type"),
	}
	if raw := c.Query("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			response.ParamError(c, "invalid resolved")
			return
		}
		filter.Resolved = &resolved
	}
	page, pageSize := parsePage(c)

	alerts, total, err := h.alertService.ListAlerts(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Page(c, alerts, total, page, pageSize)
}

// GetAlert 告警详情
// GET /api/v1/alerts/:id
func (h *Handler) GetAlert(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	alert, err := h.alertService.GetAlert(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, alert)
}

// ResolveAlertRequest 告警处理请求
type ResolveAlertRequest struct {
	ResolvedBy string `json:"resolved_by" binding:"required,max=64"`
	Note       string `json:"note" binding:"max=512"`
}

// ResolveAlert 处理告警
// POST /api/v1/alerts/:id/resolve
func (h *Handler) ResolveAlert(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req ResolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	alert, err := h.alertService.ResolveAlert(c.Request.Context(), id, req.ResolvedBy, req.Note)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, alert)
}

// AlertSummary 看板统计
// GET /api/v1/alerts/summary
func (h *Handler) AlertSummary(c *gin.Context) {
	summary, err := h.alertService.Summary(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, summary)
}
