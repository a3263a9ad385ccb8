package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Luminoxx/Arcturus-API/internal/api/middleware"
	"github.com/Luminoxx/Arcturus-API/internal/registry"
	"github.com/Luminoxx/Arcturus-API/internal/vault"
)

// CredentialHandler 用户凭证 HTTP 处理器
type CredentialHandler struct {
	service *vault.Service
}

// NewCredentialHandler 创建 CredentialHandler 实例
func NewCredentialHandler(service *vault.Service) *CredentialHandler {
	return &CredentialHandler{service: service}
}

// storeRequest 存储凭证请求体
type storeRequest struct {
	ProviderID uint   `json:"provider_id" binding:"required"`
	APIKey     string `json:"api_key" binding:"required"`
}

// Store 存储或覆盖当前账户的供应商凭证
// @Summary 存储 BYOK 凭证
// @Tags credentials
// @Accept json
// @Produce json
// @Router /api/credentials [post]
func (h *CredentialHandler) Store(c *gin.Context) {
	var req storeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	key, err := h.service.Store(middleware.AccountID(c), req.ProviderID, req.APIKey)
	if err != nil {
		switch {
		case errors.Is(err, vault.ErrInvalidKeyFormat):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"code": "INVALID_KEY_FORMAT", "message": err.Error()},
			})
		case errors.Is(err, vault.ErrBYOKNotAllowed):
			c.JSON(http.StatusForbidden, gin.H{
				"error": gin.H{"code": "BYOK_NOT_ALLOWED", "message": err.Error()},
			})
		case errors.Is(err, registry.ErrProviderNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "PROVIDER_NOT_FOUND", "message": "Provider not found"},
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to store credential"},
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"provider_id": key.ProviderID,
		"key_prefix":  key.KeyPrefix,
		"key_suffix":  key.KeySuffix,
		"is_valid":    key.IsValid,
	})
}

// List 列出当前账户的全部凭证（脱敏）
// @Summary 列出 BYOK 凭证
// @Tags credentials
// @Produce json
// @Router /api/credentials [get]
func (h *CredentialHandler) List(c *gin.Context) {
	keys, err := h.service.List(middleware.AccountID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to list credentials"},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": keys})
}

// Delete 删除当前账户的供应商凭证
// 幂等：不存在的凭证删除同样返回 204
// @Summary 删除 BYOK 凭证
// @Tags credentials
// @Router /api/credentials/{provider_id} [delete]
func (h *CredentialHandler) Delete(c *gin.Context) {
	providerID, err := strconv.ParseUint(c.Param("provider_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "INVALID_ID", "message": "Invalid provider ID"},
		})
		return
	}

	if err := h.service.Delete(middleware.AccountID(c), uint(providerID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to delete credential"},
		})
		return
	}
	c.Status(http.StatusNoContent)
}
