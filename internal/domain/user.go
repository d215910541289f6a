package domain

import (
	"context"
	"time"
)

type User struct {
	ID                  string     `gorm:"primaryKey;size:36" json:"id"`
	Name                string     `gorm:"size:40;not null" json:"name"`
	Username            *string    `gorm:"uniqueIndex;size:64" json:"username,omitempty"`
	Email               string     `gorm:"uniqueIndex;size:191;not null" json:"email"`
	PasswordHash        string     `gorm:"size:100;not null" json:"-"`
	PasswordChangedAt   *time.Time `json:"-"`
	ResetTokenHash      *string    `gorm:"index;size:64" json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	Role                Role       `gorm:"size:16;not null;default:user" json:"-"`
	Active              bool       `gorm:"not null;default:true" json:"-"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// PasswordChangedAfter 令牌签发（秒级 iat）之后是否改过密码
func (u *User) PasswordChangedAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > issuedAt.Unix()
}

// HasPendingReset 重置令牌仍在有效期内
func (u *User) HasPendingReset(now time.Time) bool {
	return u.ResetTokenHash != nil && u.ResetTokenExpiresAt != nil && u.ResetTokenExpiresAt.After(now)
}

// ListQuery 管理端用户列表（字段白名单在 repo 内校验）
type ListQuery struct {
	Name         string
	Username     string
	Email        string
	Sort         string // 例如 "-createdAt,name"
	Page         int
	Limit        int
	WithInactive bool
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Window 规整后的页码与每页条数
func (q ListQuery) Window() (page, limit int) {
	page, limit = q.Page, q.Limit
	if page <= 0 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	return page, limit
}

// ProfileUpdate 自助资料修改，nil 表示不修改
type ProfileUpdate struct {
	Name     *string
	Username *string
	Email    *string
}

// PasswordUpdate 只有在 ResetTokenHash 仍匹配时才生效（非空时）
type PasswordUpdate struct {
	UserID        string
	PasswordHash  string
	ChangedAt     time.Time
	ExpectedReset *string
	Now           time.Time
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	// FindAuthByID 包含 password_hash / role 等默认隐藏字段
	FindAuthByID(ctx context.Context, id string) (*User, error)
	FindByLogin(ctx context.Context, username, email string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByResetHash(ctx context.Context, hash string, now time.Time) (*User, error)
	SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id, hash string) error
	UpdatePassword(ctx context.Context, p PasswordUpdate) error
	UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (*User, error)
	SetRole(ctx context.Context, id string, role Role) error
	Deactivate(ctx context.Context, id string) error
	HardDelete(ctx context.Context, id string) error
	List(ctx context.Context, q ListQuery) ([]User, int64, error)
}
