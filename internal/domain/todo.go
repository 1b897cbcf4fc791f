package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound 按 id + owner 查不到（包括不属于当前用户的行）
var ErrNotFound = errors.New("record not found")

type Profile struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;size:191;not null" json:"email"`
	AvatarURL string    `gorm:"size:512" json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Profile) TableName() string { return "profiles" }

type List struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"index;size:36;not null" json:"userId"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	Items     []Item    `gorm:"-" json:"items"`
}

func (List) TableName() string { return "lists" }

type Item struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ListID    string    `gorm:"index;size:36;not null" json:"listId"`
	UserID    string    `gorm:"index;size:36;not null" json:"userId"`
	Text      string    `gorm:"size:1024;not null" json:"text"`
	Completed bool      `gorm:"not null;default:false" json:"completed"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (Item) TableName() string { return "items" }

// ProfileUpdate nil 字段不更新
type ProfileUpdate struct {
	Name      *string
	AvatarURL *string
}

// ItemUpdate nil 字段不更新
type ItemUpdate struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
}

func (u ItemUpdate) Empty() bool { return u.Text == nil && u.Completed == nil }

type ProfileRepository interface {
	Create(ctx context.Context, p *Profile) error
	FindByID(ctx context.Context, id string) (*Profile, error)
	Update(ctx context.Context, id string, u ProfileUpdate) error
}

// 所有 list / item 操作都带 owner，等价于托管平台上的行级权限
type ListRepository interface {
	ListByOwner(ctx context.Context, userID string) ([]List, error)
	FindByID(ctx context.Context, userID, id string) (*List, error)
	Create(ctx context.Context, l *List) error
	Rename(ctx context.Context, userID, id, name string) error
	Delete(ctx context.Context, userID, id string) error
}

type ItemRepository interface {
	ListByList(ctx context.Context, userID, listID string) ([]Item, error)
	Create(ctx context.Context, it *Item) error
	Update(ctx context.Context, userID, id string, u ItemUpdate) error
	Delete(ctx context.Context, userID, id string) error
	DeleteByList(ctx context.Context, userID, listID string) error
}
