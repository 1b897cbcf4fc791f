package auth

import (
	"time"

	"gorm.io/gorm"
)

const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

// IdentityModel 认证身份：email 创建后不可改
type IdentityModel struct {
	ID           string `gorm:"primaryKey;size:36"`
	Email        string `gorm:"uniqueIndex;size:191;not null"`
	PasswordHash string `gorm:"size:100"` // OAuth 身份为空
	Provider     string `gorm:"size:16;not null;default:email"`
	Name         string `gorm:"size:128"` // 元数据中的显示名

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (IdentityModel) TableName() string { return "auth_identities" }

func AutoMigrate(db *gorm.DB) error { return db.AutoMigrate(&IdentityModel{}) }

// User 会话里携带的身份信息
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider"`
}

func (m *IdentityModel) toUser() *User {
	return &User{ID: m.ID, Email: m.Email, Name: m.Name, Provider: m.Provider}
}

type Session struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        User      `json:"user"`
}

// Metadata 注册 / 更新时可写的身份元数据
type Metadata struct {
	Name string
}
