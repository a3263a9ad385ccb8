package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Luminoxx/Arcturus-API/internal/models"
)

// Context 键
const (
	ContextAccountID   = "account_id"
	ContextAccountTier = "account_tier"
)

// IdentityMiddleware 账户身份中间件
// 从 X-Account-Id / X-Account-Tier 头解析调用方身份；
// 账户体系由外层网关负责，这里只做透传与校验
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.GetHeader("X-Account-Id")
		if accountID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "MISSING_ACCOUNT",
					"message": "Missing X-Account-Id header",
				},
			})
			c.Abort()
			return
		}

		tier := c.GetHeader("X-Account-Tier")
		switch tier {
		case "":
			tier = models.AccountTierFree
		case models.AccountTierFree, models.AccountTierPro, models.AccountTierEnterprise:
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"code":    "INVALID_TIER",
					"message": "Unknown account tier: " + tier,
				},
			})
			c.Abort()
			return
		}

		c.Set(ContextAccountID, accountID)
		c.Set(ContextAccountTier, tier)
		c.Next()
	}
}

// AccountID 从 Context 取账户 ID
func AccountID(c *gin.Context) string {
	return c.GetString(ContextAccountID)
}

// AccountTier 从 Context 取账户层级
func AccountTier(c *gin.Context) string {
	return c.GetString(ContextAccountTier)
}
