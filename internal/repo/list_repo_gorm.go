package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"gin-todo-lists/internal/domain"
	"gin-todo-lists/pkg/utils"
)

const creationOrder = "created_at ASC, id ASC"

type ListRepo struct{ db *gorm.DB }

func NewListRepo(db *gorm.DB) *ListRepo { return &ListRepo{db: db} }

func (r *ListRepo) ListByOwner(ctx context.Context, userID string) ([]domain.List, error) {
	var ls []domain.List
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order(creationOrder).Find(&ls).Error; err != nil {
		return nil, err
	}
	return ls, nil
}

func (r *ListRepo) FindByID(ctx context.Context, userID, id string) (*domain.List, error) {
	var l domain.List
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ListRepo) Create(ctx context.Context, l *domain.List) error {
	if l.ID == "" {
		l.ID = utils.NewID()
	}
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *ListRepo) Rename(ctx context.Context, userID, id, name string) error {
	res := r.db.WithContext(ctx).Model(&domain.List{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ListRepo) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&domain.List{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
