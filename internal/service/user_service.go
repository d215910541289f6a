package service

import (
	"context"

	"go.uber.org/zap"

	"instantclip/internal/domain"
)

// UserService 自助资料与管理端用户操作；所有写操作后清掉会话快照
type UserService struct {
	users domain.UserRepository
	cache *UserCache
	log   *zap.Logger
}

func NewUserService(users domain.UserRepository, c *UserCache, l *zap.Logger) *UserService {
	if l == nil {
		l = zap.NewNop()
	}
	return &UserService{users: users, cache: c, log: l}
}

func (s *UserService) Me(ctx context.Context, id string) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

// UpdateMe 只接受 name / username / email，密码走 UpdatePassword
func (s *UserService) UpdateMe(ctx context.Context, id string, p domain.ProfileUpdate) (*domain.User, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	u, err := s.users.UpdateProfile(ctx, id, p)
	if err != nil {
		return nil, err
	}
	s.cache.Forget(ctx, id)
	return u, nil
}

// DeleteMe 只是停用，记录保留
func (s *UserService) DeleteMe(ctx context.Context, id string) error {
	if err := s.users.Deactivate(ctx, id); err != nil {
		return err
	}
	s.cache.Forget(ctx, id)
	s.log.Info("user deactivated itself", zap.String("uid", id))
	return nil
}

func (s *UserService) List(ctx context.Context, q domain.ListQuery) ([]domain.User, int64, error) {
	return s.users.List(ctx, q)
}

// Get 管理端查看，带 role，不带密码与重置字段
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.FindAuthByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = ""
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
	return u, nil
}

func (s *UserService) SetRole(ctx context.Context, id, role string) error {
	r, err := domain.ParseRole(role)
	if err != nil {
		return err
	}
	if err := s.users.SetRole(ctx, id, r); err != nil {
		return err
	}
	s.cache.Forget(ctx, id)
	s.log.Info("user role changed", zap.String("uid", id), zap.String("role", string(r)))
	return nil
}

func (s *UserService) Ban(ctx context.Context, id string) error {
	if err := s.users.Deactivate(ctx, id); err != nil {
		return err
	}
	s.cache.Forget(ctx, id)
	s.log.Info("user banned", zap.String("uid", id))
	return nil
}

func (s *UserService) HardDelete(ctx context.Context, id string) error {
	if err := s.users.HardDelete(ctx, id); err != nil {
		return err
	}
	s.cache.Forget(ctx, id)
	s.log.Warn("user hard deleted", zap.String("uid", id))
	return nil
}
