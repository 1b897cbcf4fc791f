package repo

import (
	"context"

	"gorm.io/gorm"

	"gin-todo-lists/internal/domain"
	"gin-todo-lists/pkg/utils"
)

type ItemRepo struct{ db *gorm.DB }

func NewItemRepo(db *gorm.DB) *ItemRepo { return &ItemRepo{db: db} }

func (r *ItemRepo) ListByList(ctx context.Context, userID, listID string) ([]domain.Item, error) {
	var items []domain.Item
	err := r.db.WithContext(ctx).
		Where("list_id = ? AND user_id = ?", listID, userID).
		Order(creationOrder).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ItemRepo) Create(ctx context.Context, it *domain.Item) error {
	if it.ID == "" {
		it.ID = utils.NewID()
	}
	// completed=false 是零值，Select 保证显式写入而不是依赖列默认值
	return r.db.WithContext(ctx).
		Select("ID", "ListID", "UserID", "Text", "Completed", "CreatedAt").
		Create(it).Error
}

func (r *ItemRepo) Update(ctx context.Context, userID, id string, u domain.ItemUpdate) error {
	fields := map[string]any{}
	if u.Text != nil {
		fields["text"] = *u.Text
	}
	if u.Completed != nil {
		fields["completed"] = *u.Completed
	}
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&domain.Item{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ItemRepo) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&domain.Item{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteByList 删除 0 行也算成功
func (r *ItemRepo) DeleteByList(ctx context.Context, userID, listID string) error {
	return r.db.WithContext(ctx).Where("list_id = ? AND user_id = ?", listID, userID).Delete(&domain.Item{}).Error
}

var _ domain.ItemRepository = (*ItemRepo)(nil)
var _ domain.ListRepository = (*ListRepo)(nil)
var _ domain.ProfileRepository = (*ProfileRepo)(nil)

// AutoMigrate 建 profiles / lists / items 表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Profile{}, &domain.List{}, &domain.Item{})
}
