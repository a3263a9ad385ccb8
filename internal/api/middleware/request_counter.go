package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Luminoxx/Arcturus-API/internal/stats"
)

// RequestCounterMiddleware 请求计数中间件
// 统计所有通过的请求
func RequestCounterMiddleware(counter *stats.RequestCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		counter.Increment()
		c.Next()
	}
}
