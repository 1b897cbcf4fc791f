package router

import (
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gin-todo-lists/internal/core/auth"
	"gin-todo-lists/internal/core/server"
	"gin-todo-lists/internal/domain"
	"gin-todo-lists/internal/service"
	mdw "gin-todo-lists/internal/transport/http/middleware"
	"gin-todo-lists/internal/web"
)

type Deps struct {
	Log       *zap.Logger
	Auth      *auth.Service
	Profiles  domain.ProfileRepository
	Store     *service.Store
	Templates *template.Template

	Cookie  mdw.CookieOpts
	Manager service.ManagerOpts

	Mode           string
	Origins        []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	MaxConcurrent  int64
}

func NewAPIEngine(d Deps) *gin.Engine {
	r := server.NewRouter(server.Options{Mode: d.Mode, Origins: d.Origins})

	r.Use(
		mdw.RequestID(),
		mdw.Recovery(d.Log),
		mdw.Metrics(),
		mdw.AccessLog(d.Log),
		mdw.Timeout(d.RequestTimeout),
		mdw.ConcurrencyLimit(d.MaxConcurrent),
		mdw.MaxBodyBytes(d.MaxBodyBytes),
	)
	r.SetHTMLTemplate(d.Templates)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.StaticFS("/static", http.FS(web.Static()))
	r.GET("/favicon.ico", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	session := mdw.Session(d.Auth, d.Profiles, d.Log, d.Cookie, d.Manager)

	var reg Registry
	reg.Register(
		&authModule{svc: d.Auth, log: d.Log.Named("http.auth"), cookie: d.Cookie},
		&listsModule{store: d.Store},
	)

	pages := r.Group("/", mdw.Guard(d.Auth, d.Cookie.Name, d.Log), session)
	reg.MountPages(pages)

	api := r.Group("/api/v1", session)
	authed := api.Group("", mdw.RequireUser())
	reg.MountAPI(api, authed)

	return r
}

// manager Session 中间件一定在前面挂过
func manager(c *gin.Context) *service.Manager { return mdw.SessionFrom(c) }
