package service

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"gin-todo-lists/internal/domain"
)

// DefaultListName 用户没有任何清单时自动创建
const DefaultListName = "My List"

var storeFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "todo_store_failures_total", Help: "Backend failures swallowed by the list/item store"},
	[]string{"op"},
)

func init() { prometheus.MustRegister(storeFailures) }

// ValidationError 在任何远端调用之前返回，Msg 可直接展示给用户
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

// Store 清单 / 条目的 CRUD 门面。
// 后端错误只记日志和指标，调用方拿到的是空切片 / nil / false；
// 返回的 error 只会是 *ValidationError。
type Store struct {
	lists domain.ListRepository
	items domain.ItemRepository
	log   *zap.Logger
}

func NewStore(lists domain.ListRepository, items domain.ItemRepository, l *zap.Logger) *Store {
	return &Store{lists: lists, items: items, log: l.Named("store")}
}

func (s *Store) fail(op string, err error, fields ...zap.Field) {
	storeFailures.WithLabelValues(op).Inc()
	lvl := s.log.Error
	if errors.Is(err, domain.ErrNotFound) {
		lvl = s.log.Warn
	}
	lvl(op+" failed", append(fields, zap.Error(err))...)
}

func (s *Store) Lists(ctx context.Context, userID string) []domain.List {
	ls, err := s.lists.ListByOwner(ctx, userID)
	if err != nil {
		s.fail("list lists", err, zap.String("uid", userID))
		return []domain.List{}
	}
	if ls == nil {
		ls = []domain.List{}
	}
	return ls
}

// EnsureDefaultList 首页用：没有清单时建一个默认清单
func (s *Store) EnsureDefaultList(ctx context.Context, userID string) []domain.List {
	ls := s.Lists(ctx, userID)
	if len(ls) > 0 {
		return ls
	}
	l, _ := s.CreateList(ctx, userID, DefaultListName)
	if l == nil {
		return ls
	}
	return []domain.List{*l}
}

// ListWithItems 清单查不到返回 nil；条目查询失败时返回不带条目的清单
func (s *Store) ListWithItems(ctx context.Context, userID, listID string) *domain.List {
	l, err := s.lists.FindByID(ctx, userID, listID)
	if err != nil {
		s.fail("get list", err, zap.String("uid", userID), zap.String("list_id", listID))
		return nil
	}
	items, err := s.items.ListByList(ctx, userID, listID)
	if err != nil {
		s.fail("list items", err, zap.String("uid", userID), zap.String("list_id", listID))
		l.Items = []domain.Item{}
		return l
	}
	if items == nil {
		items = []domain.Item{}
	}
	l.Items = items
	return l
}

func (s *Store) CreateList(ctx context.Context, userID, name string) (*domain.List, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalid("list name is required")
	}
	l := &domain.List{UserID: userID, Name: name}
	if err := s.lists.Create(ctx, l); err != nil {
		s.fail("create list", err, zap.String("uid", userID))
		return nil, nil
	}
	return l, nil
}

func (s *Store) RenameList(ctx context.Context, userID, listID, name string) (bool, error) {
	if strings.TrimSpace(name) == "" {
		return false, invalid("list name is required")
	}
	if err := s.lists.Rename(ctx, userID, listID, name); err != nil {
		s.fail("rename list", err, zap.String("uid", userID), zap.String("list_id", listID))
		return false, nil
	}
	return true, nil
}

// DeleteList 先删条目再删清单，两步不在一个事务里
func (s *Store) DeleteList(ctx context.Context, userID, listID string) bool {
	if err := s.items.DeleteByList(ctx, userID, listID); err != nil {
		s.fail("delete list items", err, zap.String("uid", userID), zap.String("list_id", listID),
			zap.String("outcome", "aborted before list delete"))
		return false
	}
	if err := s.lists.Delete(ctx, userID, listID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.fail("delete list", err, zap.String("uid", userID), zap.String("list_id", listID))
			return false
		}
		storeFailures.WithLabelValues("delete list partial").Inc()
		s.log.Error("delete list partially failed: items removed, list kept",
			zap.String("uid", userID), zap.String("list_id", listID), zap.Error(err))
		return false
	}
	return true
}

func (s *Store) AddItem(ctx context.Context, userID, listID, text string) (*domain.Item, error) {
	if strings.TrimSpace(text) == "" {
		return nil, invalid("item text is required")
	}
	if _, err := s.lists.FindByID(ctx, userID, listID); err != nil {
		s.fail("add item", err, zap.String("uid", userID), zap.String("list_id", listID))
		return nil, nil
	}
	it := &domain.Item{ListID: listID, UserID: userID, Text: text, Completed: false}
	if err := s.items.Create(ctx, it); err != nil {
		s.fail("add item", err, zap.String("uid", userID), zap.String("list_id", listID))
		return nil, nil
	}
	return it, nil
}

func (s *Store) UpdateItem(ctx context.Context, userID, itemID string, u domain.ItemUpdate) (bool, error) {
	if u.Empty() {
		return false, invalid("nothing to update")
	}
	if u.Text != nil && strings.TrimSpace(*u.Text) == "" {
		return false, invalid("item text is required")
	}
	if err := s.items.Update(ctx, userID, itemID, u); err != nil {
		s.fail("update item", err, zap.String("uid", userID), zap.String("item_id", itemID))
		return false, nil
	}
	return true, nil
}

func (s *Store) DeleteItem(ctx context.Context, userID, itemID string) bool {
	if err := s.items.Delete(ctx, userID, itemID); err != nil {
		s.fail("delete item", err, zap.String("uid", userID), zap.String("item_id", itemID))
		return false
	}
	return true
}

// DisplayOrder 未完成在前、已完成在后，组内保持原顺序
func DisplayOrder(items []domain.Item) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if !it.Completed {
			out = append(out, it)
		}
	}
	for _, it := range items {
		if it.Completed {
			out = append(out, it)
		}
	}
	return out
}
