package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	resp "gin-todo-lists/internal/transport/http/response"
)

// ConcurrencyLimit 限制同时处理的请求数，保护 DB。
// 排队受请求 ctx 约束，需挂在 Timeout 之后，超时即返回 503
func ConcurrencyLimit(max int64) gin.HandlerFunc {
	if max <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	sem := semaphore.NewWeighted(max)
	return func(c *gin.Context) {
		if err := sem.Acquire(c.Request.Context(), 1); err != nil {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeBusy, "server busy"))
			return
		}
		defer sem.Release(1)
		c.Next()
	}
}
