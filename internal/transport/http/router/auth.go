package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gin-todo-lists/internal/core/auth"
	"gin-todo-lists/internal/service"
	"gin-todo-lists/internal/transport/http/ez"
	mdw "gin-todo-lists/internal/transport/http/middleware"
	"gin-todo-lists/internal/web"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

type authModule struct {
	svc    *auth.Service
	log    *zap.Logger
	cookie mdw.CookieOpts
}

func (m *authModule) Priority() int { return 10 }

// state cookie 存 "provider:state"，回调时核对
func (m *authModule) setState(c *gin.Context, provider, state string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, provider+":"+state, int(oauthStateTTL/time.Second), "/", "", m.cookie.Secure, true)
}

func (m *authModule) popState(c *gin.Context) (provider, state string) {
	v, err := c.Cookie(oauthStateCookie)
	if err != nil {
		return "", ""
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", m.cookie.Secure, true)
	provider, state, _ = strings.Cut(v, ":")
	return provider, state
}

func (m *authModule) MountPages(g *gin.RouterGroup) {
	g.GET(mdw.PathLogin, func(c *gin.Context) {
		c.HTML(http.StatusOK, "login.html", web.Page{Title: "Log in", OAuth: m.svc.HasProvider(auth.ProviderGoogle)})
	})
	g.POST(mdw.PathLogin, m.loginPage)

	g.GET(mdw.PathRegister, func(c *gin.Context) {
		c.HTML(http.StatusOK, "register.html", web.Page{Title: "Register"})
	})
	g.POST(mdw.PathRegister, func(c *gin.Context) {
		email, name := c.PostForm("email"), c.PostForm("name")
		if r := manager(c).Register(c.Request.Context(), email, c.PostForm("password"), name); !r.Success {
			c.HTML(http.StatusOK, "register.html", web.Page{Title: "Register", Error: r.Error, Email: email, Name: name})
			return
		}
		c.Redirect(http.StatusSeeOther, mdw.PathHome)
	})

	g.POST("/logout", func(c *gin.Context) {
		manager(c).Logout(c.Request.Context())
		c.Redirect(http.StatusSeeOther, mdw.PathLogin)
	})

	g.GET(mdw.PathCallback, m.callback)

	g.GET("/profile", func(c *gin.Context) {
		c.HTML(http.StatusOK, "profile.html", web.Page{Title: "Profile", User: manager(c).User()})
	})
	g.POST("/profile", func(c *gin.Context) {
		s := manager(c)
		name, photo := c.PostForm("name"), strings.TrimSpace(c.PostForm("photo_url"))
		p := web.Page{Title: "Profile"}
		if r := s.UpdateProfile(c.Request.Context(), service.ProfileUpdate{Name: &name, PhotoURL: &photo}); !r.Success {
			p.Error = r.Error
		} else {
			p.Notice = "Profile updated."
		}
		p.User = s.User()
		c.HTML(http.StatusOK, "profile.html", p)
	})
}

func (m *authModule) loginPage(c *gin.Context) {
	s := manager(c)
	page := web.Page{Title: "Log in", OAuth: m.svc.HasProvider(auth.ProviderGoogle)}

	if provider := c.PostForm("provider"); provider != "" {
		start, r := s.FederatedLogin(c.Request.Context(), provider)
		if !r.Success {
			page.Error = r.Error
			c.HTML(http.StatusOK, "login.html", page)
			return
		}
		m.setState(c, provider, start.State)
		c.Redirect(http.StatusSeeOther, start.URL)
		return
	}

	email := c.PostForm("email")
	if r := s.Login(c.Request.Context(), email, c.PostForm("password")); !r.Success {
		page.Error, page.Email = r.Error, email
		c.HTML(http.StatusOK, "login.html", page)
		return
	}
	c.Redirect(http.StatusSeeOther, mdw.PathHome)
}

// callback 不论换码成功与否都回首页，失败只记日志
func (m *authModule) callback(c *gin.Context) {
	defer c.Redirect(http.StatusFound, mdw.PathHome)

	provider, want := m.popState(c)
	if e := c.Query("error"); e != "" {
		m.log.Warn("oauth provider returned error", zap.String("provider", provider), zap.String("error", e))
		return
	}
	if want == "" || c.Query("state") != want {
		m.log.Warn("oauth state mismatch", zap.String("provider", provider), zap.Bool("cookie_present", want != ""))
		return
	}
	code := c.Query("code")
	if code == "" {
		m.log.Warn("oauth callback without code", zap.String("provider", provider))
		return
	}
	// 失败日志由 Manager 打
	_ = manager(c).CompleteFederatedLogin(c.Request.Context(), provider, code)
}

type credentialsIn struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"     binding:"omitempty,max=128"`
}

type sessionOut struct {
	Token string            `json:"token"`
	User  *service.Identity `json:"user"`
}

type oauthIn struct {
	Provider string `json:"provider" binding:"required"`
}

type oauthOut struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

type meIn struct {
	Name     *string `json:"name"     binding:"omitempty,max=128"`
	PhotoURL *string `json:"photoURL" binding:"omitempty,max=2048"`
}

func (m *authModule) MountAPI(public, authed *gin.RouterGroup) {
	pub := ez.New(public)

	ez.RegisterAction(pub, ez.Action[credentialsIn, sessionOut]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *credentialsIn) (sessionOut, error) {
			s := manager(c)
			if r := s.Login(c.Request.Context(), in.Email, in.Password); !r.Success {
				return sessionOut{}, ez.Unauthorized(r.Error)
			}
			return sessionOut{Token: s.Token(), User: s.User()}, nil
		},
	})

	ez.RegisterAction(pub, ez.Action[credentialsIn, sessionOut]{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *credentialsIn) (sessionOut, error) {
			s := manager(c)
			if r := s.Register(c.Request.Context(), in.Email, in.Password, in.Name); !r.Success {
				return sessionOut{}, ez.BadRequest(r.Error)
			}
			return sessionOut{Token: s.Token(), User: s.User()}, nil
		},
	})

	ez.RegisterAction(pub, ez.Action[oauthIn, oauthOut]{
		Method: http.MethodPost,
		Path:   "/auth/oauth",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *oauthIn) (oauthOut, error) {
			start, r := manager(c).FederatedLogin(c.Request.Context(), in.Provider)
			if !r.Success {
				return oauthOut{}, ez.BadRequest(r.Error)
			}
			m.setState(c, in.Provider, start.State)
			return oauthOut{URL: start.URL, State: start.State}, nil
		},
	})

	ez.RegisterAction(pub, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/auth/logout",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			manager(c).Logout(c.Request.Context())
			return gin.H{}, nil
		},
	})

	me := ez.New(authed)

	ez.RegisterAction(me, ez.Action[struct{}, *service.Identity]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*service.Identity, error) {
			return manager(c).User(), nil
		},
	})

	ez.RegisterAction(me, ez.Action[meIn, *service.Identity]{
		Method: http.MethodPut,
		Path:   "/me",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *meIn) (*service.Identity, error) {
			s := manager(c)
			if r := s.UpdateProfile(c.Request.Context(), service.ProfileUpdate{Name: in.Name, PhotoURL: in.PhotoURL}); !r.Success {
				return nil, ez.BadRequest(r.Error)
			}
			return s.User(), nil
		},
	})
}
