package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"gin-todo-lists/internal/core/cache"
	"gin-todo-lists/internal/domain"
)

func TestCachedProfileRepo(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })

	base := NewProfileRepo(newTestDB(t))
	r := NewCachedProfileRepo(base, c, time.Minute)

	// 未命中的 null 也会被缓存，Create 之后必须能读到
	if p, err := r.FindByID(ctx, "u1"); err != nil || p != nil {
		t.Fatalf("Expected nil profile, got %+v, %v", p, err)
	}
	if err := r.Create(ctx, &domain.Profile{ID: "u1", Name: "Ann", Email: "ann@b.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	p, err := r.FindByID(ctx, "u1")
	if err != nil || p == nil || p.Name != "Ann" {
		t.Fatalf("Expected Ann, got %+v, %v", p, err)
	}
	if !mr.Exists("profile:u1") {
		t.Error("Expected profile to be cached")
	}

	if err := r.Update(ctx, "u1", domain.ProfileUpdate{Name: ptr("Annie")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if mr.Exists("profile:u1") {
		t.Error("Expected cache entry to be dropped on update")
	}
	p, err = r.FindByID(ctx, "u1")
	if err != nil || p.Name != "Annie" {
		t.Fatalf("Expected Annie, got %+v, %v", p, err)
	}
}
