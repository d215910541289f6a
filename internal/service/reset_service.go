package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"instantclip/internal/core/auth"
	"instantclip/internal/core/mail"
	"instantclip/internal/domain"
	"instantclip/pkg/utils"
)

const msgResetInvalid = "token is invalid or has expired"

type ResetService struct {
	users   domain.UserRepository
	hasher  *auth.Hasher
	jwt     *auth.JWTer
	mailer  mail.Sender
	cache   *UserCache
	ttl     time.Duration
	urlBase string
	skew    time.Duration
	now     func() time.Time
	log     *zap.Logger
}

type ResetDeps struct {
	Users      domain.UserRepository
	Hasher     *auth.Hasher
	JWT        *auth.JWTer
	Mailer     mail.Sender
	Cache      *UserCache
	TTL        time.Duration
	URLBase    string // 例如 https://host/api/v1/users/resetPassword
	ChangeSkew time.Duration
	Now        func() time.Time
	Log        *zap.Logger
}

func NewResetService(d ResetDeps) *ResetService {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &ResetService{
		users: d.Users, hasher: d.Hasher, jwt: d.JWT, mailer: d.Mailer, cache: d.Cache,
		ttl: d.TTL, urlBase: strings.TrimRight(d.URLBase, "/"), skew: d.ChangeSkew,
		now: d.Now, log: d.Log,
	}
}

func (s *ResetService) TTL() time.Duration { return s.ttl }

// RequestReset 生成令牌，库里只存 sha256 与过期时间，明文只进邮件。
// 发送失败时回滚（仅当库里仍是这次的 hash）
func (s *ResetService) RequestReset(ctx context.Context, email string) (err error) {
	defer func() { observe(evPasswordReset, err) }()
	email = domain.NormalizeEmail(email)
	if err := domain.ValidateEmail(email); err != nil {
		return err
	}
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFound("there is no user with that email address")
		}
		return err
	}

	plain, hash, err := utils.NewResetToken()
	if err != nil {
		return domain.Internal("generate reset token", err)
	}
	if err := s.users.SetResetToken(ctx, u.ID, hash, s.now().Add(s.ttl)); err != nil {
		return err
	}

	subject, body := s.message(plain)
	if sendErr := s.mailer.Send(ctx, u.Email, subject, body); sendErr != nil {
		if cerr := s.users.ClearResetToken(context.WithoutCancel(ctx), u.ID, hash); cerr != nil && !errors.Is(cerr, domain.ErrNotFound) {
			s.log.Error("reset token rollback failed", zap.String("uid", u.ID), zap.Error(cerr))
		}
		s.log.Warn("reset mail delivery failed", zap.String("uid", u.ID), zap.Error(sendErr))
		return domain.Delivery("there was an error sending the email, try again later", sendErr)
	}
	s.log.Info("reset token issued", zap.String("uid", u.ID))
	return nil
}

// ConsumeReset 令牌不存在和已过期不做区分；改密是一条带条件的 UPDATE，
// 并发使用同一令牌只有一个成功
func (s *ResetService) ConsumeReset(ctx context.Context, plaintext, password, confirm string) (token string, err error) {
	defer func() { observe(evResetConsume, err) }()
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return "", domain.TokenInvalid(msgResetInvalid)
	}
	hash := utils.SHA256Hex(plaintext)
	now := s.now()

	u, err := s.users.FindByResetHash(ctx, hash, now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.TokenInvalid(msgResetInvalid)
		}
		return "", err
	}
	if err := domain.ValidatePassword(password, confirm); err != nil {
		return "", err
	}
	pwHash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return "", domain.Internal("hash password", err)
	}
	err = s.users.UpdatePassword(ctx, domain.PasswordUpdate{
		UserID:        u.ID,
		PasswordHash:  pwHash,
		ChangedAt:     now.Add(-s.skew),
		ExpectedReset: &hash,
		Now:           now,
	})
	if err != nil {
		return "", err
	}
	s.cache.Forget(ctx, u.ID)
	s.log.Info("password reset", zap.String("uid", u.ID))

	tok, err := s.jwt.Issue(u.ID)
	if err != nil {
		return "", domain.Internal("issue token", err)
	}
	return tok, nil
}

func (s *ResetService) message(plain string) (subject, body string) {
	window := humanDuration(s.ttl)
	subject = fmt.Sprintf("Your password reset token (valid for %s)", window)
	body = fmt.Sprintf(
		"Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s/%s\n"+
			"This link is valid for %s.\n"+
			"If you didn't forget your password, please ignore this email.",
		s.urlBase, plain, window)
	return subject, body
}

// humanDuration 10m → "10 minutes"，2h → "2 hours"，90m → "90 minutes"
func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return plural(int64(d.Round(time.Second)/time.Second), "second")
	}
}
