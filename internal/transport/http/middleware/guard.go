package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	PathHome     = "/"
	PathLogin    = "/login"
	PathRegister = "/register"
	PathCallback = "/auth/callback"
)

// 静态资源和非页面入口不过守卫
var guardExcluded = []string{"/static/", "/favicon.ico", "/health", "/metrics", "/api/"}

var authOnly = map[string]bool{
	PathLogin:    true,
	PathRegister: true,
	PathCallback: true,
}

func Excluded(path string) bool {
	for _, p := range guardExcluded {
		if path == strings.TrimSuffix(p, "/") || strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Decide 返回要跳转的地址，空串表示放行
func Decide(path string, hasSession bool) string {
	if Excluded(path) {
		return ""
	}
	if authOnly[path] {
		if hasSession && path != PathCallback {
			return PathHome
		}
		return ""
	}
	if !hasSession {
		return PathLogin
	}
	return ""
}

// Guard 每次导航都向认证服务核实会话，不看本地缓存的身份
func Guard(res SessionResolver, cookieName string, l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if Excluded(path) {
			c.Next()
			return
		}
		has := false
		if tok := TokenFrom(c, cookieName); tok != "" {
			s, err := res.GetSession(c.Request.Context(), tok)
			if err != nil {
				l.Warn("guard session lookup failed", zap.String("path", path), zap.Error(err))
			}
			has = s != nil
		}
		if to := Decide(path, has); to != "" {
			guardRedirects.WithLabelValues(to).Inc()
			c.Redirect(http.StatusFound, to)
			c.Abort()
			return
		}
		c.Next()
	}
}
