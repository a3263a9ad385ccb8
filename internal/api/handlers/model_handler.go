package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Luminoxx/Arcturus-API/internal/registry"
)

// ModelHandler 模型管理 HTTP 处理器
type ModelHandler struct {
	service *registry.Service
}

// NewModelHandler 创建 ModelHandler 实例
func NewModelHandler(service *registry.Service) *ModelHandler {
	return &ModelHandler{service: service}
}

// Create 创建模型
// @Summary 创建模型
// @Tags admin
// @Router /api/admin/models [post]
func (h *ModelHandler) Create(c *gin.Context) {
	var req registry.CreateModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	model, err := h.service.CreateModel(req)
	if err != nil {
		writeRegistryError(c, err, "Failed to create model")
		return
	}
	c.JSON(http.StatusCreated, model)
}

// Get 获取单个模型
// @Summary 获取模型
// @Tags admin
// @Router /api/admin/models/{id} [get]
func (h *ModelHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	model, err := h.service.GetModel(id)
	if err != nil {
		writeRegistryError(c, err, "Failed to get model")
		return
	}
	c.JSON(http.StatusOK, model)
}

// List 分页获取模型列表
// @Summary 模型列表
// @Tags admin
// @Router /api/admin/models [get]
func (h *ModelHandler) List(c *gin.Context) {
	page, pageSize := parsePagination(c)

	items, total, err := h.service.ListModels(page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to list models"},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"models": items,
		"pagination": gin.H{
			"page":      page,
			"page_size": pageSize,
			"total":     total,
		},
	})
}

// Update 更新模型
// @Summary 更新模型
// @Tags admin
// @Router /api/admin/models/{id} [put]
func (h *ModelHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req registry.UpdateModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	model, err := h.service.UpdateModel(id, req)
	if err != nil {
		writeRegistryError(c, err, "Failed to update model")
		return
	}
	c.JSON(http.StatusOK, model)
}

// Delete 删除模型
// @Summary 删除模型
// @Tags admin
// @Router /api/admin/models/{id} [delete]
func (h *ModelHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteModel(id); err != nil {
		writeRegistryError(c, err, "Failed to delete model")
		return
	}
	c.Status(http.StatusNoContent)
}
