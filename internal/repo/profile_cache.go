package repo

import (
	"context"
	"time"

	"gin-todo-lists/internal/core/cache"
	"gin-todo-lists/internal/domain"
)

// CachedProfileRepo 每个请求都要按 id 取 profile，读走 redis，写后删缓存
type CachedProfileRepo struct {
	next domain.ProfileRepository
	c    *cache.Cache
	ttl  time.Duration
}

func NewCachedProfileRepo(next domain.ProfileRepository, c *cache.Cache, ttl time.Duration) *CachedProfileRepo {
	return &CachedProfileRepo{next: next, c: c, ttl: ttl}
}

func profileKey(id string) string { return "profile:" + id }

func (r *CachedProfileRepo) Create(ctx context.Context, p *domain.Profile) error {
	if err := r.next.Create(ctx, p); err != nil {
		return err
	}
	// 可能缓存过 null
	_ = r.c.Del(ctx, profileKey(p.ID))
	return nil
}

func (r *CachedProfileRepo) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	return cache.GetOrLoadJSON(r.c, ctx, profileKey(id), r.ttl, func(ctx context.Context) (*domain.Profile, error) {
		return r.next.FindByID(ctx, id)
	})
}

func (r *CachedProfileRepo) Update(ctx context.Context, id string, u domain.ProfileUpdate) error {
	err := r.next.Update(ctx, id, u)
	_ = r.c.Del(ctx, profileKey(id))
	return err
}

var _ domain.ProfileRepository = (*CachedProfileRepo)(nil)
