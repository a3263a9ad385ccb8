package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware 管理端鉴权中间件
// 校验 X-Admin-Key 头；未配置管理密钥时管理端整体关闭
func AdminAuthMiddleware(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.JSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "ADMIN_DISABLED",
					"message": "Admin API is disabled",
				},
			})
			c.Abort()
			return
		}

		provided := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(adminKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "INVALID_ADMIN_KEY",
					"message": "Invalid admin key",
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
