package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"instantclip/internal/core/auth"
	"instantclip/internal/core/database/dbtest"
	"instantclip/internal/domain"
	"instantclip/internal/repo"
)

const (
	testPassword = "Secret123!"
	testResetURL = "http://localhost/api/v1/users/resetPassword"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) Send(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

type fixture struct {
	repo   *repo.UserRepo
	clock  *fakeClock
	jwt    *auth.JWTer
	hasher *auth.Hasher
	mailer *mockMailer
	cache  *UserCache
	auth   *AuthService
	reset  *ResetService
	users  *UserService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithCache(t, nil)
}

func newFixtureWithCache(t *testing.T, c *UserCache) *fixture {
	t.Helper()
	f := &fixture{
		repo:   repo.NewUserRepo(dbtest.New(t)),
		clock:  newClock(),
		mailer: &mockMailer{},
		cache:  c,
	}
	f.jwt = &auth.JWTer{Secret: []byte("test-secret"), Issuer: "instantclip", TTL: time.Hour, Now: f.clock.Now}
	hasher := auth.NewHasher(bcrypt.MinCost, 2)
	f.hasher = hasher
	f.auth = NewAuthService(AuthDeps{
		Users: f.repo, Hasher: hasher, JWT: f.jwt, Cache: c,
		ChangeSkew: time.Second, Now: f.clock.Now,
	})
	f.reset = NewResetService(ResetDeps{
		Users: f.repo, Hasher: hasher, JWT: f.jwt, Mailer: f.mailer, Cache: c,
		TTL: 10 * time.Minute, URLBase: testResetURL + "/", ChangeSkew: time.Second, Now: f.clock.Now,
	})
	f.users = NewUserService(f.repo, c, nil)
	t.Cleanup(func() { f.mailer.AssertExpectations(t) })
	return f
}

func (f *fixture) signup(t *testing.T, email string, username *string) (*domain.User, string) {
	t.Helper()
	u, tok, err := f.auth.Signup(context.Background(), domain.CreateUserInput{
		Name:            "Alice",
		Username:        username,
		Email:           email,
		Password:        testPassword,
		PasswordConfirm: testPassword,
	})
	require.NoError(t, err)
	return u, tok
}

var tokenInMail = regexp.MustCompile(`resetPassword/([0-9a-f]{64})`)

// expectResetMail 截获邮件正文里的明文令牌
func (f *fixture) expectResetMail(t *testing.T, to string) *string {
	t.Helper()
	var plain string
	f.mailer.On("Send", mock.Anything, to, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			m := tokenInMail.FindStringSubmatch(args.String(3))
			require.Len(t, m, 2)
			plain = m[1]
		}).
		Return(nil).Once()
	return &plain
}

func strPtr(s string) *string { return &s }
