package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"gin-todo-lists/internal/core/database"
	"gin-todo-lists/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewGorm(database.Opts{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func ptr[T any](v T) *T { return &v }

func TestProfileRepo(t *testing.T) {
	ctx := context.Background()
	r := NewProfileRepo(newTestDB(t))

	got, err := r.FindByID(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("Expected nil, nil for missing profile, got %v, %v", got, err)
	}

	if err := r.Create(ctx, &domain.Profile{ID: "u1", Name: "Ann", Email: "ann@b.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.Create(ctx, &domain.Profile{ID: "u1", Name: "Dup", Email: "dup@b.com"}); err == nil {
		t.Error("Expected duplicate primary key to fail")
	}

	if err := r.Update(ctx, "u1", domain.ProfileUpdate{AvatarURL: ptr("https://img/a.png")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err = r.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Name != "Ann" || got.AvatarURL != "https://img/a.png" {
		t.Errorf("Unexpected profile %+v", got)
	}

	if err := r.Update(ctx, "nobody", domain.ProfileUpdate{Name: ptr("x")}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListRepo(t *testing.T) {
	ctx := context.Background()
	r := NewListRepo(newTestDB(t))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seed := []struct {
		name   string
		offset time.Duration
	}{
		{"second", time.Minute},
		{"first", 0},
		{"third", 2 * time.Minute},
	}
	for _, s := range seed {
		if err := r.Create(ctx, &domain.List{UserID: "u1", Name: s.name, CreatedAt: base.Add(s.offset)}); err != nil {
			t.Fatalf("create %s: %v", s.name, err)
		}
	}
	if err := r.Create(ctx, &domain.List{UserID: "u2", Name: "other"}); err != nil {
		t.Fatalf("create other: %v", err)
	}

	ls, err := r.ListByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ls) != 3 {
		t.Fatalf("Expected 3 lists, got %d", len(ls))
	}
	for i, want := range []string{"first", "second", "third"} {
		if ls[i].Name != want {
			t.Errorf("lists[%d] = %q, want %q", i, ls[i].Name, want)
		}
	}

	id := ls[0].ID
	if _, err := r.FindByID(ctx, "u2", id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected other owner lookup to be ErrNotFound, got %v", err)
	}
	if err := r.Rename(ctx, "u1", id, "renamed"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	l, err := r.FindByID(ctx, "u1", id)
	if err != nil || l.Name != "renamed" {
		t.Fatalf("Expected renamed list, got %+v, %v", l, err)
	}
	if err := r.Rename(ctx, "u2", id, "stolen"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected foreign rename to be ErrNotFound, got %v", err)
	}

	if err := r.Delete(ctx, "u1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := r.Delete(ctx, "u1", id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected second delete to be ErrNotFound, got %v", err)
	}
}

func TestItemRepo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	lists := NewListRepo(db)
	items := NewItemRepo(db)

	l := &domain.List{UserID: "u1", Name: "groceries"}
	if err := lists.Create(ctx, l); err != nil {
		t.Fatalf("create list: %v", err)
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i, text := range []string{"milk", "eggs", "bread"} {
		it := &domain.Item{ListID: l.ID, UserID: "u1", Text: text, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := items.Create(ctx, it); err != nil {
			t.Fatalf("create item: %v", err)
		}
		if it.Completed {
			t.Error("Expected new item to be incomplete")
		}
		ids = append(ids, it.ID)
	}

	if err := items.Update(ctx, "u1", ids[1], domain.ItemUpdate{Completed: ptr(true)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := items.Update(ctx, "u1", ids[2], domain.ItemUpdate{Text: ptr("rye bread")}); err != nil {
		t.Fatalf("update text: %v", err)
	}
	if err := items.Update(ctx, "u2", ids[0], domain.ItemUpdate{Completed: ptr(true)}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected foreign update to be ErrNotFound, got %v", err)
	}

	got, err := items.ListByList(ctx, "u1", l.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(got))
	}
	if got[0].Text != "milk" || got[0].Completed {
		t.Errorf("Unexpected item 0: %+v", got[0])
	}
	if got[1].Text != "eggs" || !got[1].Completed {
		t.Errorf("Unexpected item 1: %+v", got[1])
	}
	if got[2].Text != "rye bread" || got[2].Completed {
		t.Errorf("Unexpected item 2: %+v", got[2])
	}

	if err := items.Delete(ctx, "u1", ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := items.DeleteByList(ctx, "u1", l.ID); err != nil {
		t.Fatalf("delete by list: %v", err)
	}
	if err := items.DeleteByList(ctx, "u1", l.ID); err != nil {
		t.Errorf("Expected deleting an empty list's items to succeed, got %v", err)
	}
	got, err = items.ListByList(ctx, "u1", l.ID)
	if err != nil || len(got) != 0 {
		t.Errorf("Expected no items, got %d, %v", len(got), err)
	}
}
