package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		// 社员
		members := api.Group("/members")
		{
			members.POST("", h.CreateMember)
			members.GET("", h.ListMembers)
			members.GET("/:id", h.GetMember)
			members.POST("/:id/status", h.UpdateMemberStatus)
		}

		// 交易流水
		transactions := api.Group("/transactions")
		{
			transactions.POST("", h.CreateTransaction)
			transactions.GET("", h.ListTransactions)
			transactions.GET("/:id", h.GetTransaction)
		}

		// 反欺诈告警
		alerts := api.Group("/alerts")
		{
			alerts.GET("", h.ListAlerts)
			alerts.GET("/summary", h.AlertSummary)
			alerts.GET("/:id", h.GetAlert)
			alerts.POST("/:id/resolve", h.ResolveAlert)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
