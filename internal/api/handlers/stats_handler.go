package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Luminoxx/Arcturus-API/internal/events"
	"github.com/Luminoxx/Arcturus-API/internal/models"
	"github.com/Luminoxx/Arcturus-API/internal/registry"
	"github.com/Luminoxx/Arcturus-API/internal/stats"
	"github.com/Luminoxx/Arcturus-API/internal/usage"
)

// StatsHandler 统计信息处理器
type StatsHandler struct {
	registry       *registry.Service
	usage          *usage.Service
	latency        *stats.LatencyTracker
	requestCounter *stats.RequestCounter
	eventService   *events.Service
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(
	registrySvc *registry.Service,
	usageSvc *usage.Service,
	latency *stats.LatencyTracker,
	requestCounter *stats.RequestCounter,
	eventSvc *events.Service,
) *StatsHandler {
	return &StatsHandler{
		registry:       registrySvc,
		usage:          usageSvc,
		latency:        latency,
		requestCounter: requestCounter,
		eventService:   eventSvc,
	}
}

// ProviderStats 供应商统计
type ProviderStats struct {
	Total    int `json:"total"`
	Healthy  int `json:"healthy"`
	Degraded int `json:"degraded"`
	Down     int `json:"down"`
}

// SystemStats 系统统计信息响应
type SystemStats struct {
	Providers       ProviderStats        `json:"providers"`
	Requests        stats.RequestStats   `json:"requests"`
	StatusBreakdown map[string]int64     `json:"status_breakdown"`
	AvgLatencyMs    map[uint]float64     `json:"avg_latency_ms"`
	RecentEvents    []models.SystemEvent `json:"recent_events"`
}

// GetStats 获取系统概览统计
// @Summary 系统统计信息
// @Description 供应商健康分布、请求 QPS、终态分布与各供应商平均延迟
// @Tags stats
// @Produce json
// @Success 200 {object} SystemStats
// @Router /api/stats [get]
func (h *StatsHandler) GetStats(c *gin.Context) {
	providers, err := h.registry.Cache().Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to load providers"},
		})
		return
	}

	providerStats := ProviderStats{Total: len(providers)}
	for _, provider := range providers {
		switch provider.HealthStatus {
		case models.HealthStatusHealthy:
			providerStats.Healthy++
		case models.HealthStatusDegraded:
			providerStats.Degraded++
		case models.HealthStatusDown:
			providerStats.Down++
		}
	}

	breakdown, err := h.usage.StatusBreakdown(24 * time.Hour)
	if err != nil {
		breakdown = map[string]int64{}
	}

	recent, err := h.eventService.GetRecentEvents(20)
	if err != nil {
		recent = nil
	}

	c.JSON(http.StatusOK, SystemStats{
		Providers:       providerStats,
		Requests:        h.requestCounter.GetStats(),
		StatusBreakdown: breakdown,
		AvgLatencyMs:    h.latency.Snapshot(),
		RecentEvents:    recent,
	})
}

// ListEvents 管理端：查询系统事件
// @Summary 系统事件列表
// @Tags admin
// @Produce json
// @Router /api/admin/events [get]
func (h *StatsHandler) ListEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}

	var eventList []models.SystemEvent
	if eventType := c.Query("type"); eventType != "" {
		eventList, err = h.eventService.GetEventsByType(eventType, limit)
	} else {
		eventList, err = h.eventService.GetRecentEvents(limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to list events"},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": eventList})
}
