package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Luminoxx/Arcturus-API/internal/api/middleware"
	"github.com/Luminoxx/Arcturus-API/internal/usage"
)

// UsageHandler 用量查询 HTTP 处理器
type UsageHandler struct {
	service *usage.Service
}

// NewUsageHandler 创建 UsageHandler 实例
func NewUsageHandler(service *usage.Service) *UsageHandler {
	return &UsageHandler{service: service}
}

// List 分页查询当前账户的用量事件
// @Summary 用量事件列表
// @Tags usage
// @Produce json
// @Router /api/usage [get]
func (h *UsageHandler) List(c *gin.Context) {
	page, pageSize := parsePagination(c)
	from, to, ok := parseTimeRange(c)
	if !ok {
		return
	}

	events, total, err := h.service.ListByAccount(middleware.AccountID(c), from, to, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to list usage events"},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"pagination": gin.H{
			"page":      page,
			"page_size": pageSize,
			"total":     total,
		},
	})
}

// Summary 当前账户的用量汇总（按模型与按天）
// @Summary 用量汇总
// @Tags usage
// @Produce json
// @Router /api/usage/summary [get]
func (h *UsageHandler) Summary(c *gin.Context) {
	from, to, ok := parseTimeRange(c)
	if !ok {
		return
	}

	summary, err := h.service.Summarize(middleware.AccountID(c), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to summarize usage"},
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// parseTimeRange 解析 from/to 查询参数（RFC 3339）
func parseTimeRange(c *gin.Context) (time.Time, time.Time, bool) {
	var from, to time.Time
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"code": "INVALID_TIME", "message": "from must be RFC 3339"},
			})
			return from, to, false
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"code": "INVALID_TIME", "message": "to must be RFC 3339"},
			})
			return from, to, false
		}
		to = parsed
	}
	return from, to, true
}
