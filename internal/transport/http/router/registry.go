package router

import (
	"sort"

	"github.com/gin-gonic/gin"
)

// APIModule 挂在 /api/v1：public 无需登录，authed 已过 RequireUser
type APIModule interface {
	MountAPI(public, authed *gin.RouterGroup)
}

// PageModule 挂在页面分组（已过路由守卫）
type PageModule interface{ MountPages(*gin.RouterGroup) }

// 可选：实现该接口可控制挂载顺序（数值越小越先挂），不实现默认 100
type prioritizer interface{ Priority() int }

// Registry 模块可以实现 APIModule / PageModule 其中一个或两个
type Registry struct {
	api   []APIModule
	pages []PageModule
}

func (r *Registry) Register(mods ...any) {
	for _, mod := range mods {
		if m, ok := mod.(APIModule); ok {
			r.api = append(r.api, m)
		}
		if m, ok := mod.(PageModule); ok {
			r.pages = append(r.pages, m)
		}
	}
}

func (r *Registry) MountAPI(public, authed *gin.RouterGroup) {
	mods := append([]APIModule(nil), r.api...)
	sort.SliceStable(mods, func(i, j int) bool { return priorityOf(mods[i]) < priorityOf(mods[j]) })
	for _, m := range mods {
		m.MountAPI(public, authed)
	}
}

func (r *Registry) MountPages(g *gin.RouterGroup) {
	mods := append([]PageModule(nil), r.pages...)
	sort.SliceStable(mods, func(i, j int) bool { return priorityOf(mods[i]) < priorityOf(mods[j]) })
	for _, m := range mods {
		m.MountPages(g)
	}
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}
