package web

import (
	"embed"
	"html/template"
	"io/fs"

	"gin-todo-lists/internal/domain"
	"gin-todo-lists/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page 所有页面共用一个视图模型，用不到的字段留空
type Page struct {
	Title  string
	User   *service.Identity
	Error  string
	Notice string

	// 登录 / 注册表单回填
	Email string
	Name  string
	OAuth bool

	Lists  []domain.List
	Active *domain.List
	Items  []domain.Item
}

// Templates 模板名即文件名，如 "home.html"
func Templates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
