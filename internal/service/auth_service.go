package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"instantclip/internal/core/auth"
	"instantclip/internal/domain"
)

const (
	msgInvalidCredentials = "invalid credentials"
	msgAccountGone        = "account no longer exists"
	msgCredentialsChanged = "credentials changed, re-authenticate"
)

type AuthService struct {
	users  domain.UserRepository
	hasher *auth.Hasher
	jwt    *auth.JWTer
	cache  *UserCache
	// 改密时间往前拨一点，保证同一秒签发的新令牌仍然有效
	skew time.Duration
	now  func() time.Time
	log  *zap.Logger
}

type AuthDeps struct {
	Users      domain.UserRepository
	Hasher     *auth.Hasher
	JWT        *auth.JWTer
	Cache      *UserCache // 可选
	ChangeSkew time.Duration
	Now        func() time.Time
	Log        *zap.Logger
}

func NewAuthService(d AuthDeps) *AuthService {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &AuthService{
		users: d.Users, hasher: d.Hasher, jwt: d.JWT, cache: d.Cache,
		skew: d.ChangeSkew, now: d.Now, log: d.Log,
	}
}

// Create 校验 → 哈希 → 入库；返回的用户不带密码哈希
func (s *AuthService) Create(ctx context.Context, in domain.CreateUserInput) (*domain.User, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, domain.Internal("hash password", err)
	}
	u := &domain.User{
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	u.PasswordHash = ""
	return u, nil
}

// Signup 注册并直接签发会话令牌
func (s *AuthService) Signup(ctx context.Context, in domain.CreateUserInput) (u *domain.User, token string, err error) {
	defer func() { observe(evSignup, err) }()
	if u, err = s.Create(ctx, in); err != nil {
		return nil, "", err
	}
	if token, err = s.issue(u.ID); err != nil {
		return nil, "", err
	}
	s.log.Info("user signed up", zap.String("uid", u.ID))
	return u, token, nil
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

// Login 用户名或邮箱 + 密码；账号不存在与密码错误返回同一个错误
func (s *AuthService) Login(ctx context.Context, in LoginInput) (token string, err error) {
	defer func() { observe(evLogin, err) }()
	username := strings.TrimSpace(in.Username)
	email := domain.NormalizeEmail(in.Email)
	if (username == "" && email == "") || in.Password == "" {
		return "", domain.Validation("please provide username or email and password")
	}

	u, err := s.users.FindByLogin(ctx, username, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// 依然做一次比较，耗时上不暴露账号是否存在
		if _, verr := s.hasher.Verify(ctx, in.Password, ""); verr != nil {
			return "", domain.Internal("verify password", verr)
		}
		return "", domain.Validation(msgInvalidCredentials)
	case err != nil:
		return "", err
	}

	ok, err := s.VerifyCredential(ctx, in.Password, u.PasswordHash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.Validation(msgInvalidCredentials)
	}
	return s.issue(u.ID)
}

func (s *AuthService) VerifyCredential(ctx context.Context, plaintext, storedHash string) (bool, error) {
	ok, err := s.hasher.Verify(ctx, plaintext, storedHash)
	if err != nil {
		return false, domain.Internal("verify password", err)
	}
	return ok, nil
}

type PasswordChange struct {
	UserID          string
	CurrentPassword string
	Password        string
	PasswordConfirm string
}

// UpdatePassword 校验旧密码后改密，同时作废未消费的重置令牌，返回新令牌
func (s *AuthService) UpdatePassword(ctx context.Context, in PasswordChange) (token string, err error) {
	defer func() { observe(evPasswordEdit, err) }()
	u, err := s.users.FindAuthByID(ctx, in.UserID)
	if err != nil {
		return "", err
	}
	ok, err := s.VerifyCredential(ctx, in.CurrentPassword, u.PasswordHash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.Validation("your current password is wrong")
	}
	if err := domain.ValidatePassword(in.Password, in.PasswordConfirm); err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return "", domain.Internal("hash password", err)
	}
	now := s.now()
	err = s.users.UpdatePassword(ctx, domain.PasswordUpdate{
		UserID:       u.ID,
		PasswordHash: hash,
		ChangedAt:    now.Add(-s.skew),
		Now:          now,
	})
	if err != nil {
		return "", err
	}
	s.cache.Forget(ctx, u.ID)
	s.log.Info("password updated", zap.String("uid", u.ID))
	return s.issue(u.ID)
}

// Authenticate 会话校验：验签 → 读用户 → 比较改密时间
func (s *AuthService) Authenticate(ctx context.Context, token string) (u *domain.User, err error) {
	defer func() { observe(evSession, err) }()
	claims, err := s.jwt.Parse(token)
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return nil, domain.TokenExpired("your token has expired, please log in again")
	case err != nil:
		return nil, domain.TokenInvalid("invalid token, please log in again")
	}

	u, err = s.cache.Load(ctx, claims.UID, s.users)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.Unauthenticated(msgAccountGone)
	}
	if u.PasswordChangedAfter(claims.IssuedAtTime()) {
		return nil, domain.Unauthenticated(msgCredentialsChanged)
	}
	return u, nil
}

func (s *AuthService) issue(uid string) (string, error) {
	tok, err := s.jwt.Issue(uid)
	if err != nil {
		return "", domain.Internal("issue token", err)
	}
	return tok, nil
}
