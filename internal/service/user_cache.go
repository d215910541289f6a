package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"instantclip/internal/core/cache"
	"instantclip/internal/domain"
)

// userSnapshot 会话校验需要的用户快照；不含密码哈希与重置令牌。
// domain.User 的 json 会隐藏 role，所以缓存单独一个结构
type userSnapshot struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Username          *string     `json:"username,omitempty"`
	Email             string      `json:"email"`
	Role              domain.Role `json:"role"`
	Active            bool        `json:"active"`
	PasswordChangedAt *time.Time  `json:"passwordChangedAt,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

func snapshotOf(u *domain.User) *userSnapshot {
	return &userSnapshot{
		ID: u.ID, Name: u.Name, Username: u.Username, Email: u.Email, Role: u.Role,
		Active: u.Active, PasswordChangedAt: u.PasswordChangedAt,
		CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

func (s *userSnapshot) user() *domain.User {
	return &domain.User{
		ID: s.ID, Name: s.Name, Username: s.Username, Email: s.Email, Role: s.Role,
		Active: s.Active, PasswordChangedAt: s.PasswordChangedAt,
		CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}
}

// UserCache 可选的 redis 快照缓存；c 为 nil 时直接读库。
// 每次用户写操作都要调用 Forget，TTL 之内仍可能读到旧数据
type UserCache struct {
	c   *cache.Cache
	ttl time.Duration
	log *zap.Logger
}

func NewUserCache(c *cache.Cache, ttl time.Duration, l *zap.Logger) *UserCache {
	if l == nil {
		l = zap.NewNop()
	}
	return &UserCache{c: c, ttl: ttl, log: l}
}

func userKey(id string) string { return "user:" + id }

// Load 用户不存在（含已停用）时返回 (nil, nil)
func (uc *UserCache) Load(ctx context.Context, id string, users domain.UserRepository) (*domain.User, error) {
	load := func(ctx context.Context) (*userSnapshot, error) {
		u, err := users.FindAuthByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return snapshotOf(u), nil
	}

	var (
		snap *userSnapshot
		err  error
	)
	if uc == nil || uc.c == nil || uc.ttl <= 0 {
		snap, err = load(ctx)
	} else {
		snap, err = cache.GetOrLoadJSON(uc.c, ctx, userKey(id), uc.ttl, load)
	}
	if err != nil || snap == nil {
		return nil, err
	}
	return snap.user(), nil
}

// Forget redis 出错只记日志，不影响写操作本身
func (uc *UserCache) Forget(ctx context.Context, id string) {
	if uc == nil || uc.c == nil {
		return
	}
	if err := uc.c.Delete(ctx, userKey(id)); err != nil {
		uc.log.Warn("user cache invalidate failed", zap.String("uid", id), zap.Error(err))
	}
}
