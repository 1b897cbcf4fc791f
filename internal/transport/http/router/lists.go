package router

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"gin-todo-lists/internal/domain"
	"gin-todo-lists/internal/service"
	"gin-todo-lists/internal/transport/http/ez"
	mdw "gin-todo-lists/internal/transport/http/middleware"
	"gin-todo-lists/internal/web"
)

type listsModule struct{ store *service.Store }

// storeErr 校验错误原样返回；其余失败详情已在 Store 里记过日志
func storeErr(err error, fallback string) error {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return ez.BadRequest(ve.Msg)
	}
	return ez.Internal(fallback, err)
}

// back 表单提交后回到首页，带上当前清单和校验错误
func back(c *gin.Context, listID string, err error) {
	q := url.Values{}
	if listID != "" {
		q.Set("list", listID)
	}
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		q.Set("error", ve.Msg)
	}
	to := mdw.PathHome
	if len(q) > 0 {
		to += "?" + q.Encode()
	}
	c.Redirect(http.StatusSeeOther, to)
}

func (m *listsModule) MountPages(g *gin.RouterGroup) {
	g.GET(mdw.PathHome, m.home)

	g.POST("/lists", func(c *gin.Context) {
		l, err := m.store.CreateList(c.Request.Context(), mdw.UserID(c), c.PostForm("name"))
		id := c.Query("list")
		if l != nil {
			id = l.ID
		}
		back(c, id, err)
	})
	g.POST("/lists/:id/rename", func(c *gin.Context) {
		_, err := m.store.RenameList(c.Request.Context(), mdw.UserID(c), c.Param("id"), c.PostForm("name"))
		back(c, c.Param("id"), err)
	})
	g.POST("/lists/:id/delete", func(c *gin.Context) {
		if !m.store.DeleteList(c.Request.Context(), mdw.UserID(c), c.Param("id")) {
			back(c, c.Param("id"), nil)
			return
		}
		back(c, "", nil)
	})
	g.POST("/lists/:id/items", func(c *gin.Context) {
		_, err := m.store.AddItem(c.Request.Context(), mdw.UserID(c), c.Param("id"), c.PostForm("text"))
		back(c, c.Param("id"), err)
	})
	g.POST("/items/:id/toggle", func(c *gin.Context) {
		done := c.PostForm("completed") == "true"
		_, err := m.store.UpdateItem(c.Request.Context(), mdw.UserID(c), c.Param("id"), domain.ItemUpdate{Completed: &done})
		back(c, c.PostForm("list"), err)
	})
	g.POST("/items/:id/edit", func(c *gin.Context) {
		text := c.PostForm("text")
		_, err := m.store.UpdateItem(c.Request.Context(), mdw.UserID(c), c.Param("id"), domain.ItemUpdate{Text: &text})
		back(c, c.PostForm("list"), err)
	})
	g.POST("/items/:id/delete", func(c *gin.Context) {
		m.store.DeleteItem(c.Request.Context(), mdw.UserID(c), c.Param("id"))
		back(c, c.PostForm("list"), nil)
	})
}

// home 没有清单时建默认清单；选中的清单查不到就退回第一个
func (m *listsModule) home(c *gin.Context) {
	ctx, uid := c.Request.Context(), mdw.UserID(c)
	page := web.Page{Title: "Lists", User: manager(c).User(), Error: c.Query("error")}

	page.Lists = m.store.EnsureDefaultList(ctx, uid)
	var active *domain.List
	if id := c.Query("list"); id != "" {
		active = m.store.ListWithItems(ctx, uid, id)
	}
	if active == nil && len(page.Lists) > 0 {
		active = m.store.ListWithItems(ctx, uid, page.Lists[0].ID)
	}
	if active != nil {
		page.Active = active
		page.Items = service.DisplayOrder(active.Items)
	}
	c.HTML(http.StatusOK, "home.html", page)
}

type nameIn struct {
	Name string `json:"name"`
}

type itemIn struct {
	Text string `json:"text"`
}

type itemPatchIn struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
}

type idOut struct {
	ID string `json:"id"`
}

func (m *listsModule) MountAPI(_, authed *gin.RouterGroup) {
	e := ez.New(authed)

	ez.RegisterAction(e, ez.Action[struct{}, []domain.List]{
		Method: http.MethodGet,
		Path:   "/lists",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.List, error) {
			return m.store.Lists(c.Request.Context(), mdw.UserID(c)), nil
		},
	})

	ez.RegisterAction(e, ez.Action[nameIn, *domain.List]{
		Method: http.MethodPost,
		Path:   "/lists",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *nameIn) (*domain.List, error) {
			l, err := m.store.CreateList(c.Request.Context(), mdw.UserID(c), in.Name)
			if err != nil || l == nil {
				return nil, storeErr(err, "create list failed")
			}
			return l, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.List]{
		Method: http.MethodGet,
		Path:   "/lists/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.List, error) {
			l := m.store.ListWithItems(c.Request.Context(), mdw.UserID(c), c.Param("id"))
			if l == nil {
				return nil, ez.NotFound("list not found")
			}
			return l, nil
		},
	})

	ez.RegisterAction(e, ez.Action[nameIn, idOut]{
		Method: http.MethodPut,
		Path:   "/lists/:id",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *nameIn) (idOut, error) {
			ok, err := m.store.RenameList(c.Request.Context(), mdw.UserID(c), c.Param("id"), in.Name)
			if err != nil || !ok {
				return idOut{}, storeErr(err, "rename list failed")
			}
			return idOut{ID: c.Param("id")}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, idOut]{
		Method: http.MethodDelete,
		Path:   "/lists/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (idOut, error) {
			if !m.store.DeleteList(c.Request.Context(), mdw.UserID(c), c.Param("id")) {
				return idOut{}, storeErr(nil, "delete list failed")
			}
			return idOut{ID: c.Param("id")}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[itemIn, *domain.Item]{
		Method: http.MethodPost,
		Path:   "/lists/:id/items",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *itemIn) (*domain.Item, error) {
			it, err := m.store.AddItem(c.Request.Context(), mdw.UserID(c), c.Param("id"), in.Text)
			if err != nil || it == nil {
				return nil, storeErr(err, "add item failed")
			}
			return it, nil
		},
	})

	ez.RegisterAction(e, ez.Action[itemPatchIn, idOut]{
		Method: http.MethodPut,
		Path:   "/items/:id",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *itemPatchIn) (idOut, error) {
			u := domain.ItemUpdate{Text: in.Text, Completed: in.Completed}
			ok, err := m.store.UpdateItem(c.Request.Context(), mdw.UserID(c), c.Param("id"), u)
			if err != nil || !ok {
				return idOut{}, storeErr(err, "update item failed")
			}
			return idOut{ID: c.Param("id")}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, idOut]{
		Method: http.MethodDelete,
		Path:   "/items/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (idOut, error) {
			if !m.store.DeleteItem(c.Request.Context(), mdw.UserID(c), c.Param("id")) {
				return idOut{}, storeErr(nil, "delete item failed")
			}
			return idOut{ID: c.Param("id")}, nil
		},
	})
}
