package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"gin-todo-lists/internal/domain"
)

type ProfileRepo struct{ db *gorm.DB }

func NewProfileRepo(db *gorm.DB) *ProfileRepo { return &ProfileRepo{db: db} }

func (r *ProfileRepo) Create(ctx context.Context, p *domain.Profile) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// FindByID 查不到返回 nil, nil
func (r *ProfileRepo) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepo) Update(ctx context.Context, id string, u domain.ProfileUpdate) error {
	fields := map[string]any{}
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.AvatarURL != nil {
		fields["avatar_url"] = *u.AvatarURL
	}
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&domain.Profile{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
