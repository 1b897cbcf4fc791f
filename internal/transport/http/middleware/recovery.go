package middleware

import (
	"net/http"
	"strings"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	resp "gin-todo-lists/internal/transport/http/response"
)

// Recovery panic 记栈；API 返回 500 信封，页面返回纯文本 500
func Recovery(l *zap.Logger) gin.HandlerFunc {
	return ginzap.CustomRecoveryWithZap(l, true, func(c *gin.Context, _ any) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeServerError, "internal error"))
			return
		}
		c.AbortWithStatus(http.StatusInternalServerError)
	})
}
