package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Luminoxx/Arcturus-API/internal/api/middleware"
	"github.com/Luminoxx/Arcturus-API/internal/events"
	"github.com/Luminoxx/Arcturus-API/internal/ledger"
	"github.com/Luminoxx/Arcturus-API/internal/models"
)

// CreditHandler 额度账本 HTTP 处理器
type CreditHandler struct {
	service *ledger.Service
	events  *events.Service
}

// NewCreditHandler 创建 CreditHandler 实例
func NewCreditHandler(service *ledger.Service, eventSvc *events.Service) *CreditHandler {
	return &CreditHandler{service: service, events: eventSvc}
}

// GetBalance 查询当前账户余额
// @Summary 查询余额
// @Tags credits
// @Produce json
// @Success 200 {object} models.CreditBalance
// @Router /api/credits/balance [get]
func (h *CreditHandler) GetBalance(c *gin.Context) {
	balance, err := h.service.GetBalance(middleware.AccountID(c))
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "ACCOUNT_NOT_FOUND", "message": "No credit account for this account"},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to get balance"},
		})
		return
	}
	c.JSON(http.StatusOK, balance)
}

// ListTransactions 分页查询当前账户流水（倒序）
// @Summary 查询额度流水
// @Tags credits
// @Produce json
// @Router /api/credits/transactions [get]
func (h *CreditHandler) ListTransactions(c *gin.Context) {
	page, pageSize := parsePagination(c)

	transactions, total, err := h.service.ListTransactions(middleware.AccountID(c), page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to list transactions"},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"pagination": gin.H{
			"page":      page,
			"page_size": pageSize,
			"total":     total,
		},
	})
}

// adjustRequest 管理端额度调整请求体
type adjustRequest struct {
	AccountID string          `json:"account_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Tier      string          `json:"tier"`
	Reason    string          `json:"reason"`
}

// Allocate 管理端：为账户分配额度
// @Summary 分配额度
// @Tags admin
// @Router /api/admin/credits/allocate [post]
func (h *CreditHandler) Allocate(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	balance, err := h.service.Allocate(req.AccountID, req.Amount, req.Tier, req.Reason)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"code": "INVALID_AMOUNT", "message": err.Error()},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to allocate credits"},
		})
		return
	}

	_ = h.events.LogInfo(models.EventTypeCreditAllocation, "管理端分配额度", map[string]interface{}{
		"account_id": req.AccountID,
		"amount":     req.Amount.String(),
	})
	c.JSON(http.StatusOK, balance)
}

// Refund 管理端：退还额度
// @Summary 退还额度
// @Tags admin
// @Router /api/admin/credits/refund [post]
func (h *CreditHandler) Refund(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	balance, err := h.service.Refund(req.AccountID, req.Amount, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"code": "INVALID_AMOUNT", "message": err.Error()},
			})
		case errors.Is(err, ledger.ErrAccountNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "ACCOUNT_NOT_FOUND", "message": "No credit account for this account"},
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to refund credits"},
			})
		}
		return
	}

	_ = h.events.LogInfo(models.EventTypeCreditRefund, "管理端退还额度", map[string]interface{}{
		"account_id": req.AccountID,
		"amount":     req.Amount.String(),
	})
	c.JSON(http.StatusOK, balance)
}

// couponRequest 优惠券入账请求体
type couponRequest struct {
	AccountID string          `json:"account_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Code      string          `json:"code" binding:"required"`
}

// ApplyCoupon 管理端：优惠券入账
// @Summary 优惠券入账
// @Tags admin
// @Router /api/admin/credits/coupon [post]
func (h *CreditHandler) ApplyCoupon(c *gin.Context) {
	var req couponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	balance, err := h.service.ApplyCoupon(req.AccountID, req.Amount, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"code": "INVALID_AMOUNT", "message": err.Error()},
			})
		case errors.Is(err, ledger.ErrAccountNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "ACCOUNT_NOT_FOUND", "message": "No credit account for this account"},
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to apply coupon"},
			})
		}
		return
	}
	c.JSON(http.StatusOK, balance)
}

// Reconcile 管理端：校验账户流水与余额一致性
// @Summary 账本对账
// @Tags admin
// @Router /api/admin/credits/{account_id}/reconcile [get]
func (h *CreditHandler) Reconcile(c *gin.Context) {
	accountID := c.Param("account_id")

	report, err := h.service.Reconcile(accountID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "ACCOUNT_NOT_FOUND", "message": "No credit account for this account"},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to reconcile ledger"},
		})
		return
	}
	if !report.Consistent {
		c.JSON(http.StatusConflict, gin.H{
			"error":  gin.H{"code": "LEDGER_MISMATCH", "message": "Ledger sum does not match remaining balance"},
			"report": report,
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

// parsePagination 解析分页参数，越界回退默认值
func parsePagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// writeBadRequest 参数绑定失败的统一响应
func writeBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request parameters",
			"details": err.Error(),
		},
	})
}
