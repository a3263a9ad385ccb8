package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Luminoxx/Arcturus-API/internal/health"
	"github.com/Luminoxx/Arcturus-API/internal/registry"
)

// ProviderHandler 供应商管理 HTTP 处理器
type ProviderHandler struct {
	service *registry.Service
	monitor *health.Monitor
}

// NewProviderHandler 创建 ProviderHandler 实例
func NewProviderHandler(service *registry.Service, monitor *health.Monitor) *ProviderHandler {
	return &ProviderHandler{service: service, monitor: monitor}
}

// Create 创建供应商
// @Summary 创建供应商
// @Tags admin
// @Accept json
// @Produce json
// @Success 201 {object} registry.ProviderResponse
// @Failure 400 {object} registry.ErrorResponse
// @Failure 409 {object} registry.ErrorResponse
// @Router /api/admin/providers [post]
func (h *ProviderHandler) Create(c *gin.Context) {
	var req registry.CreateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	provider, err := h.service.CreateProvider(req)
	if err != nil {
		writeRegistryError(c, err, "Failed to create provider")
		return
	}
	c.JSON(http.StatusCreated, registry.ToProviderResponse(provider))
}

// Get 获取单个供应商
// @Summary 获取供应商
// @Tags admin
// @Router /api/admin/providers/{id} [get]
func (h *ProviderHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	provider, err := h.service.GetProvider(id)
	if err != nil {
		writeRegistryError(c, err, "Failed to get provider")
		return
	}
	c.JSON(http.StatusOK, registry.ToProviderResponse(provider))
}

// List 分页获取供应商列表
// @Summary 供应商列表
// @Tags admin
// @Router /api/admin/providers [get]
func (h *ProviderHandler) List(c *gin.Context) {
	page, pageSize := parsePagination(c)

	providers, total, err := h.service.ListProviders(page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to list providers"},
		})
		return
	}

	responses := make([]*registry.ProviderResponse, 0, len(providers))
	for _, provider := range providers {
		responses = append(responses, registry.ToProviderResponse(provider))
	}
	c.JSON(http.StatusOK, gin.H{
		"providers": responses,
		"pagination": gin.H{
			"page":      page,
			"page_size": pageSize,
			"total":     total,
		},
	})
}

// Update 更新供应商
// @Summary 更新供应商
// @Tags admin
// @Router /api/admin/providers/{id} [put]
func (h *ProviderHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req registry.UpdateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	provider, err := h.service.UpdateProvider(id, req)
	if err != nil {
		writeRegistryError(c, err, "Failed to update provider")
		return
	}
	c.JSON(http.StatusOK, registry.ToProviderResponse(provider))
}

// setActiveRequest 启停请求体
type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActive 手动启用/停用供应商
// 手动操作会清除监控自动禁用标记，此后健康恢复不会自动再启用
// @Summary 启停供应商
// @Tags admin
// @Router /api/admin/providers/{id}/active [put]
func (h *ProviderHandler) SetActive(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	if err := h.service.SetProviderActive(id, *req.Active); err != nil {
		writeRegistryError(c, err, "Failed to change provider state")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "active": *req.Active})
}

// Delete 删除供应商（软删除）
// @Summary 删除供应商
// @Tags admin
// @Router /api/admin/providers/{id} [delete]
func (h *ProviderHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteProvider(id); err != nil {
		writeRegistryError(c, err, "Failed to delete provider")
		return
	}
	c.Status(http.StatusNoContent)
}

// Recheck 立即探测单个供应商健康状态
// @Summary 主动健康探测
// @Tags admin
// @Router /api/admin/providers/{id}/recheck [post]
func (h *ProviderHandler) Recheck(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.monitor.CheckProvider(c.Request.Context(), id)
	if err != nil {
		writeRegistryError(c, err, "Failed to check provider")
		return
	}
	c.JSON(http.StatusOK, result)
}

// RecheckAll 立即执行一轮全量健康巡检
// @Summary 全量健康巡检
// @Tags admin
// @Router /api/admin/health/check [post]
func (h *ProviderHandler) RecheckAll(c *gin.Context) {
	h.monitor.CheckAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

// writeRegistryError 注册表错误到 HTTP 响应的统一映射
func writeRegistryError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, registry.ErrProviderNotFound), errors.Is(err, registry.ErrModelNotFound):
		c.JSON(http.StatusNotFound, registry.ErrorResponse{
			Error: registry.ErrorDetail{Code: "NOT_FOUND", Message: err.Error()},
		})
	case errors.Is(err, registry.ErrProviderSlugExists), errors.Is(err, registry.ErrModelExists):
		c.JSON(http.StatusConflict, registry.ErrorResponse{
			Error: registry.ErrorDetail{Code: "CONFLICT", Message: err.Error()},
		})
	case errors.Is(err, registry.ErrInvalidInput), errors.Is(err, registry.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, registry.ErrorResponse{
			Error: registry.ErrorDetail{Code: "VALIDATION_ERROR", Message: err.Error()},
		})
	default:
		c.JSON(http.StatusInternalServerError, registry.ErrorResponse{
			Error: registry.ErrorDetail{Code: "INTERNAL_ERROR", Message: fallback},
		})
	}
}

// parseID 解析路径中的数字 ID
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "INVALID_ID", "message": "Invalid ID"},
		})
		return 0, false
	}
	return uint(id), true
}
