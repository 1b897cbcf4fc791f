package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gin-todo-lists/internal/core/auth"
	"gin-todo-lists/internal/domain"
	"gin-todo-lists/internal/service"
	resp "gin-todo-lists/internal/transport/http/response"
)

const (
	KeyUserID  = "userId"
	KeySession = "session"
)

type CookieOpts struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// TokenFrom 先看 Bearer，再看 cookie
func TokenFrom(c *gin.Context, cookieName string) string {
	if ah := c.GetHeader("Authorization"); strings.HasPrefix(ah, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
	}
	if v, err := c.Cookie(cookieName); err == nil {
		return v
	}
	return ""
}

func writeCookie(c *gin.Context, o CookieOpts, token string) {
	maxAge := int(o.MaxAge / time.Second)
	if token == "" {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(o.Name, token, maxAge, "/", "", o.Secure, true)
}

// Session 每个请求一个 auth.Client + service.Manager。
// 身份变化时同步改写 cookie 和 ctx 里的 userId。
func Session(svc *auth.Service, profiles domain.ProfileRepository, l *zap.Logger, co CookieOpts, mo service.ManagerOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := TokenFrom(c, co.Name)
		m := service.NewManager(svc.NewClient(tok), profiles, l, mo)

		starting := true
		unsub := m.Subscribe(func(u *service.Identity) {
			if u == nil {
				c.Set(KeyUserID, "")
				// 登出清掉 cookie；首次推导由 Start 的结果决定
				if tok != "" && !starting {
					tok = ""
					writeCookie(c, co, "")
				}
				return
			}
			c.Set(KeyUserID, u.ID)
			if t := m.Token(); t != "" && t != tok {
				tok = t
				writeCookie(c, co, t)
			}
		})
		defer unsub()

		err := m.Start(c.Request.Context())
		starting = false
		defer m.Stop()
		// 后端查询失败时本次请求按未登录处理，cookie 保留；只有 token 确实无效才清掉
		if err == nil && m.User() == nil && tok != "" {
			tok = ""
			writeCookie(c, co, "")
		}

		c.Set(KeySession, m)
		c.Next()
	}
}

func SessionFrom(c *gin.Context) *service.Manager {
	if v, ok := c.Get(KeySession); ok {
		if m, ok := v.(*service.Manager); ok {
			return m
		}
	}
	return nil
}

func UserID(c *gin.Context) string { return c.GetString(KeyUserID) }

// RequireUser API 分组用：未登录返回 401 信封
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "unauthorized"))
			return
		}
		c.Next()
	}
}

// SessionResolver 路由守卫用，每次请求都向认证服务核实 token
type SessionResolver interface {
	GetSession(ctx context.Context, token string) (*auth.Session, error)
}

var _ SessionResolver = (*auth.Service)(nil)
