package handler

import (
	"saccoguard/internal/repository"
	"saccoguard/internal/service"
	"saccoguard/pkg/response"

	"github.com/gin-gonic/gin"
)

// CreateMemberRequest 开户请求
type CreateMemberRequest struct {
	FullName   string `json:"full_name" binding:"required,max=128"`
	Phone      string `json:"phone" binding:"max=32"`
	NationalID string `json:"national_id" binding:"required,max=32"`
}

// CreateMember 社员开户
// POST /api/v1/members
func (h *Handler) CreateMember(c *gin.Context) {
	var req CreateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	member, err := h.memberService.CreateMember(c.Request.Context(), &service.CreateMemberRequest{
		FullName:   req.FullName,
		Phone:      req.Phone,
		NationalID: req.NationalID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, member)
}

// GetMember 查询社员详情
// GET /api/v1/members/:id
func (h *Handler) GetMember(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	member, err := h.memberService.GetMember(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, member)
}

// ListMembers 社员列表
// GET /api/v1/members?status=ACTIVE&keyword=xxx&page=1&page_size=20
func (h *Handler) ListMembers(c *gin.Context) {
	page, pageSize := parsePage(c)
	filter := repository.MemberFilter{
		Status:  c.Query("status"),
		Keyword: c.Query("keyword"),
	}

	members, total, err := h.memberService.ListMembers(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Page(c, members, total, page, pageSize)
}

// UpdateMemberStatus 冻结/恢复社员
// POST /api/v1/members/:id/status
func (h *Handler) UpdateMemberStatus(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required,oneof=ACTIVE SUSPENDED"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	member, err := h.memberService.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, member)
}
