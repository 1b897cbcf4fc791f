package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"gin-todo-lists/internal/core/auth"
	"gin-todo-lists/internal/core/database"
	"gin-todo-lists/internal/domain"
	"gin-todo-lists/internal/repo"
)

var errBackend = errors.New("backend unavailable")

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
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := auth.AutoMigrate(db); err != nil {
		t.Fatalf("migrate auth: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// flakyLists / flakyItems 在真实仓储外包一层，按方法名注入错误
type flakyLists struct {
	domain.ListRepository
	fail map[string]error
}

func (f *flakyLists) ListByOwner(ctx context.Context, uid string) ([]domain.List, error) {
	if err := f.fail["ListByOwner"]; err != nil {
		return nil, err
	}
	return f.ListRepository.ListByOwner(ctx, uid)
}

func (f *flakyLists) FindByID(ctx context.Context, uid, id string) (*domain.List, error) {
	if err := f.fail["FindByID"]; err != nil {
		return nil, err
	}
	return f.ListRepository.FindByID(ctx, uid, id)
}

func (f *flakyLists) Create(ctx context.Context, l *domain.List) error {
	if err := f.fail["Create"]; err != nil {
		return err
	}
	return f.ListRepository.Create(ctx, l)
}

func (f *flakyLists) Rename(ctx context.Context, uid, id, name string) error {
	if err := f.fail["Rename"]; err != nil {
		return err
	}
	return f.ListRepository.Rename(ctx, uid, id, name)
}

func (f *flakyLists) Delete(ctx context.Context, uid, id string) error {
	if err := f.fail["Delete"]; err != nil {
		return err
	}
	return f.ListRepository.Delete(ctx, uid, id)
}

type flakyItems struct {
	domain.ItemRepository
	fail map[string]error
}

func (f *flakyItems) ListByList(ctx context.Context, uid, listID string) ([]domain.Item, error) {
	if err := f.fail["ListByList"]; err != nil {
		return nil, err
	}
	return f.ItemRepository.ListByList(ctx, uid, listID)
}

func (f *flakyItems) Create(ctx context.Context, it *domain.Item) error {
	if err := f.fail["Create"]; err != nil {
		return err
	}
	return f.ItemRepository.Create(ctx, it)
}

func (f *flakyItems) Update(ctx context.Context, uid, id string, u domain.ItemUpdate) error {
	if err := f.fail["Update"]; err != nil {
		return err
	}
	return f.ItemRepository.Update(ctx, uid, id, u)
}

func (f *flakyItems) DeleteByList(ctx context.Context, uid, listID string) error {
	if err := f.fail["DeleteByList"]; err != nil {
		return err
	}
	return f.ItemRepository.DeleteByList(ctx, uid, listID)
}

type storeFixture struct {
	store *Store
	lists *flakyLists
	items *flakyItems
	logs  *observer.ObservedLogs
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	db := newTestDB(t)
	core, logs := observer.New(zap.DebugLevel)
	fl := &flakyLists{ListRepository: repo.NewListRepo(db), fail: map[string]error{}}
	fi := &flakyItems{ItemRepository: repo.NewItemRepo(db), fail: map[string]error{}}
	return &storeFixture{
		store: NewStore(fl, fi, zap.New(core)),
		lists: fl,
		items: fi,
		logs:  logs,
	}
}

func ptr[T any](v T) *T { return &v }

func mustList(t *testing.T, s *Store, uid, name string) *domain.List {
	t.Helper()
	l, err := s.CreateList(context.Background(), uid, name)
	if err != nil || l == nil {
		t.Fatalf("create list %q: %v, %v", name, l, err)
	}
	return l
}

func mustItem(t *testing.T, s *Store, uid, listID, text string) *domain.Item {
	t.Helper()
	it, err := s.AddItem(context.Background(), uid, listID, text)
	if err != nil || it == nil {
		t.Fatalf("add item %q: %v, %v", text, it, err)
	}
	return it
}

func TestStoreListsAndItems(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t)
	s := f.store

	a := mustList(t, s, "u1", "Groceries")
	b := mustList(t, s, "u1", "Work")
	mustList(t, s, "u2", "Other")

	got := s.Lists(ctx, "u1")
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
		t.Fatalf("Expected u1 lists oldest first, got %+v", got)
	}

	it := mustItem(t, s, "u1", a.ID, "milk")
	if it.Completed {
		t.Error("Expected new item to be incomplete")
	}
	mustItem(t, s, "u1", a.ID, "eggs")

	full := s.ListWithItems(ctx, "u1", a.ID)
	if full == nil || len(full.Items) != 2 || full.Items[0].Text != "milk" {
		t.Fatalf("Unexpected list with items %+v", full)
	}

	t.Run("Ownership", func(t *testing.T) {
		if got := s.ListWithItems(ctx, "u2", a.ID); got != nil {
			t.Error("Expected another user to see nothing")
		}
		if it, err := s.AddItem(ctx, "u2", a.ID, "sneaky"); err != nil || it != nil {
			t.Errorf("Expected add into foreign list to fail, got %v, %v", it, err)
		}
		if s.DeleteItem(ctx, "u2", it.ID) {
			t.Error("Expected foreign item delete to fail")
		}
	})

	t.Run("Rename", func(t *testing.T) {
		ok, err := s.RenameList(ctx, "u1", b.ID, "Office")
		if err != nil || !ok {
			t.Fatalf("rename: %v, %v", ok, err)
		}
		if got := s.ListWithItems(ctx, "u1", b.ID); got.Name != "Office" {
			t.Errorf("Expected renamed list, got %q", got.Name)
		}
		if ok, _ := s.RenameList(ctx, "u1", "missing", "x"); ok {
			t.Error("Expected rename of missing list to report false")
		}
	})
}

func TestStoreValidation(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t)
	s := f.store
	// 校验错误不能触达后端
	f.lists.fail["Create"] = errBackend
	f.lists.fail["Rename"] = errBackend
	f.items.fail["Update"] = errBackend

	var ve *ValidationError
	if _, err := s.CreateList(ctx, "u1", "  "); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for blank list name, got %v", err)
	}
	if _, err := s.RenameList(ctx, "u1", "l1", ""); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for blank rename, got %v", err)
	}
	if _, err := s.AddItem(ctx, "u1", "l1", ""); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for blank item, got %v", err)
	}
	if _, err := s.UpdateItem(ctx, "u1", "i1", domain.ItemUpdate{}); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for empty update, got %v", err)
	}
	if _, err := s.UpdateItem(ctx, "u1", "i1", domain.ItemUpdate{Text: ptr(" ")}); !errors.As(err, &ve) {
		t.Errorf("Expected ValidationError for blank text, got %v", err)
	}
	if n := f.logs.Len(); n != 0 {
		t.Errorf("Expected no backend failure logs, got %d", n)
	}
}

func TestStoreDegradesAndLogs(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t)
	s := f.store
	l := mustList(t, s, "u1", "L")
	it := mustItem(t, s, "u1", l.ID, "x")

	f.lists.fail["ListByOwner"] = errBackend
	if got := s.Lists(ctx, "u1"); got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", got)
	}

	f.items.fail["ListByList"] = errBackend
	got := s.ListWithItems(ctx, "u1", l.ID)
	if got == nil || got.ID != l.ID || len(got.Items) != 0 {
		t.Errorf("Expected list without items, got %+v", got)
	}

	f.lists.fail["Create"] = errBackend
	if nl, err := s.CreateList(ctx, "u1", "N"); nl != nil || err != nil {
		t.Errorf("Expected nil, nil on backend error, got %v, %v", nl, err)
	}

	f.items.fail["Update"] = errBackend
	if ok, err := s.UpdateItem(ctx, "u1", it.ID, domain.ItemUpdate{Completed: ptr(true)}); ok || err != nil {
		t.Errorf("Expected false, nil on backend error, got %v, %v", ok, err)
	}

	errs := f.logs.FilterMessageSnippet("failed").FilterField(zap.Error(errBackend)).All()
	if len(errs) != 4 {
		t.Fatalf("Expected 4 backend failure logs, got %d: %v", len(errs), f.logs.All())
	}
	for _, e := range errs {
		if e.Level != zap.ErrorLevel {
			t.Errorf("Expected error level for %q, got %s", e.Message, e.Level)
		}
	}
}

func TestStoreDeleteListCascades(t *testing.T) {
	ctx := context.Background()
	for _, n := range []int{0, 1, 5} {
		f := newStoreFixture(t)
		s := f.store
		keep := mustList(t, s, "u1", "keep")
		mustItem(t, s, "u1", keep.ID, "stays")
		l := mustList(t, s, "u1", "doomed")
		for i := 0; i < n; i++ {
			mustItem(t, s, "u1", l.ID, "item")
		}

		if !s.DeleteList(ctx, "u1", l.ID) {
			t.Fatalf("n=%d: Expected delete to succeed", n)
		}
		for _, got := range s.Lists(ctx, "u1") {
			if got.ID == l.ID {
				t.Errorf("n=%d: Expected deleted list to be absent", n)
			}
		}
		left, err := f.items.ItemRepository.ListByList(ctx, "u1", l.ID)
		if err != nil || len(left) != 0 {
			t.Errorf("n=%d: Expected zero remaining items, got %d (%v)", n, len(left), err)
		}
		if kept := s.ListWithItems(ctx, "u1", keep.ID); kept == nil || len(kept.Items) != 1 {
			t.Errorf("n=%d: Expected sibling list untouched, got %+v", n, kept)
		}
	}
}

func TestStoreDeleteListAbortsOnItemFailure(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t)
	s := f.store
	l := mustList(t, s, "u1", "L")
	mustItem(t, s, "u1", l.ID, "x")

	f.items.fail["DeleteByList"] = errBackend
	if s.DeleteList(ctx, "u1", l.ID) {
		t.Fatal("Expected delete to fail")
	}
	if got := s.ListWithItems(ctx, "u1", l.ID); got == nil || len(got.Items) != 1 {
		t.Errorf("Expected list and its items to survive, got %+v", got)
	}
	if n := f.logs.FilterField(zap.String("outcome", "aborted before list delete")).Len(); n != 1 {
		t.Errorf("Expected one abort log, got %d", n)
	}
}

func TestStoreDeleteListPartialFailure(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t)
	s := f.store
	l := mustList(t, s, "u1", "L")
	mustItem(t, s, "u1", l.ID, "x")

	f.lists.fail["Delete"] = errBackend
	if s.DeleteList(ctx, "u1", l.ID) {
		t.Fatal("Expected delete to fail")
	}
	if n := f.logs.FilterMessageSnippet("partially failed").Len(); n != 1 {
		t.Errorf("Expected a distinct partial failure log, got %v", f.logs.All())
	}
	if got := s.ListWithItems(ctx, "u1", l.ID); got == nil || len(got.Items) != 0 {
		t.Errorf("Expected list kept with items removed, got %+v", got)
	}
}

func TestStoreUpdateItemTouchesOnlyTarget(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t)
	s := f.store
	l := mustList(t, s, "u1", "L")
	a := mustItem(t, s, "u1", l.ID, "a")
	b := mustItem(t, s, "u1", l.ID, "b")
	c := mustItem(t, s, "u1", l.ID, "c")

	ok, err := s.UpdateItem(ctx, "u1", b.ID, domain.ItemUpdate{Completed: ptr(true)})
	if err != nil || !ok {
		t.Fatalf("update: %v, %v", ok, err)
	}
	got := s.ListWithItems(ctx, "u1", l.ID)
	want := map[string]domain.Item{a.ID: *a, c.ID: *c}
	for _, it := range got.Items {
		if it.ID == b.ID {
			if !it.Completed || it.Text != "b" {
				t.Errorf("Expected b completed with text intact, got %+v", it)
			}
			continue
		}
		w := want[it.ID]
		if it.Completed != w.Completed || it.Text != w.Text {
			t.Errorf("Expected %s unchanged, got %+v", it.ID, it)
		}
	}

	ok, err = s.UpdateItem(ctx, "u1", a.ID, domain.ItemUpdate{Text: ptr("A")})
	if err != nil || !ok {
		t.Fatalf("update text: %v, %v", ok, err)
	}
	if got := s.ListWithItems(ctx, "u1", l.ID); got.Items[0].Text != "A" || got.Items[0].Completed {
		t.Errorf("Expected only text to change, got %+v", got.Items[0])
	}
}

func TestEnsureDefaultList(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t)
	s := f.store

	got := s.EnsureDefaultList(ctx, "u1")
	if len(got) != 1 || got[0].Name != DefaultListName {
		t.Fatalf("Expected default list, got %+v", got)
	}
	again := s.EnsureDefaultList(ctx, "u1")
	if len(again) != 1 || again[0].ID != got[0].ID {
		t.Errorf("Expected no second default list, got %+v", again)
	}
}

func TestDisplayOrder(t *testing.T) {
	in := []domain.Item{
		{ID: "0", Completed: false},
		{ID: "1", Completed: true},
		{ID: "2", Completed: false},
		{ID: "3", Completed: true},
	}
	got := DisplayOrder(in)
	want := []string{"0", "2", "1", "3"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("DisplayOrder = %v, want %v", got, want)
		}
	}
	if in[1].ID != "1" {
		t.Error("Expected input left untouched")
	}
	if out := DisplayOrder(nil); len(out) != 0 {
		t.Errorf("Expected empty output, got %v", out)
	}
}
