package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"instantclip/internal/domain"
	"instantclip/pkg/utils"
)

func TestRequestReset_StoresHashOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, _ := f.signup(t, "alice@example.com", nil)

	var subject, body string
	f.mailer.On("Send", mock.Anything, "alice@example.com", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			subject, body = args.String(2), args.String(3)
		}).
		Return(nil).Once()

	require.NoError(t, f.reset.RequestReset(ctx, " ALICE@example.com "))

	m := tokenInMail.FindStringSubmatch(body)
	require.Len(t, m, 2)
	plain := m[1]
	assert.Contains(t, subject, "10 minutes")
	assert.Contains(t, body, "valid for 10 minutes")

	stored, err := f.repo.FindAuthByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetTokenHash)
	require.NotNil(t, stored.ResetTokenExpiresAt)
	assert.NotEqual(t, plain, *stored.ResetTokenHash)
	assert.Equal(t, utils.SHA256Hex(plain), *stored.ResetTokenHash)
	assert.True(t, stored.ResetTokenExpiresAt.Equal(f.clock.Now().Add(10*time.Minute)))
	assert.True(t, stored.HasPendingReset(f.clock.Now()))
}

func TestRequestReset_UnknownOrInvalidEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.reset.RequestReset(ctx, "nobody@example.com"), domain.ErrNotFound)
	assert.ErrorIs(t, f.reset.RequestReset(ctx, "nope"), domain.ErrValidation)
	f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestReset_DeliveryFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, _ := f.signup(t, "alice@example.com", nil)

	f.mailer.On("Send", mock.Anything, "alice@example.com", mock.Anything, mock.Anything).
		Return(errors.New("smtp down")).Once()

	err := f.reset.RequestReset(ctx, "alice@example.com")
	require.ErrorIs(t, err, domain.ErrDelivery)
	assert.Equal(t, domain.KindDelivery, domain.KindOf(err))

	stored, err := f.repo.FindAuthByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ResetTokenHash)
	assert.Nil(t, stored.ResetTokenExpiresAt)
}

func TestConsumeReset_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, _ := f.signup(t, "alice@example.com", nil)
	plain := f.expectResetMail(t, "alice@example.com")
	require.NoError(t, f.reset.RequestReset(ctx, "alice@example.com"))

	tok, err := f.reset.ConsumeReset(ctx, *plain, "NewSecret456!", "NewSecret456!")
	require.NoError(t, err)
	got, err := f.auth.Authenticate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.reset.ConsumeReset(ctx, *plain, "Another789!", "Another789!")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	stored, err := f.repo.FindAuthByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ResetTokenHash)
	assert.Nil(t, stored.ResetTokenExpiresAt)
	assert.True(t, utils.CheckPassword("NewSecret456!", stored.PasswordHash))
}

func TestConsumeReset_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice@example.com", nil)
	plain := f.expectResetMail(t, "alice@example.com")
	require.NoError(t, f.reset.RequestReset(ctx, "alice@example.com"))

	f.clock.Advance(10*time.Minute + time.Second)
	_, err := f.reset.ConsumeReset(ctx, *plain, "NewSecret456!", "NewSecret456!")
	require.ErrorIs(t, err, domain.ErrTokenInvalid)

	// 过期和不存在的报错一致
	_, errUnknown := f.reset.ConsumeReset(ctx, "deadbeef", "NewSecret456!", "NewSecret456!")
	require.ErrorIs(t, errUnknown, domain.ErrTokenInvalid)
	assert.Equal(t, err.Error(), errUnknown.Error())

	_, err = f.reset.ConsumeReset(ctx, "", "NewSecret456!", "NewSecret456!")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestConsumeReset_ValidationKeepsToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice@example.com", nil)
	plain := f.expectResetMail(t, "alice@example.com")
	require.NoError(t, f.reset.RequestReset(ctx, "alice@example.com"))

	_, err := f.reset.ConsumeReset(ctx, *plain, "NewSecret456!", "different!!")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.reset.ConsumeReset(ctx, *plain, "NewSecret456!", "NewSecret456!")
	assert.NoError(t, err)
}

func TestConsumeReset_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice@example.com", nil)
	plain := f.expectResetMail(t, "alice@example.com")
	require.NoError(t, f.reset.RequestReset(ctx, "alice@example.com"))

	const n = 5
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reset.ConsumeReset(ctx, *plain, "NewSecret456!", "NewSecret456!")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, oks)
	for _, err := range errs {
		assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	}
}

func TestUpdatePassword_InvalidatesPendingReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, _ := f.signup(t, "alice@example.com", nil)
	plain := f.expectResetMail(t, "alice@example.com")
	require.NoError(t, f.reset.RequestReset(ctx, "alice@example.com"))

	_, err := f.auth.UpdatePassword(ctx, PasswordChange{
		UserID: u.ID, CurrentPassword: testPassword, Password: "NewSecret456!", PasswordConfirm: "NewSecret456!",
	})
	require.NoError(t, err)

	_, err = f.reset.ConsumeReset(ctx, *plain, "Another789!", "Another789!")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestNewerResetRequestReplacesOlder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signup(t, "alice@example.com", nil)

	first := f.expectResetMail(t, "alice@example.com")
	require.NoError(t, f.reset.RequestReset(ctx, "alice@example.com"))
	second := f.expectResetMail(t, "alice@example.com")
	require.NoError(t, f.reset.RequestReset(ctx, "alice@example.com"))
	require.NotEqual(t, *first, *second)

	_, err := f.reset.ConsumeReset(ctx, *first, "NewSecret456!", "NewSecret456!")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	_, err = f.reset.ConsumeReset(ctx, *second, "NewSecret456!", "NewSecret456!")
	assert.NoError(t, err)
}

func TestHumanDuration(t *testing.T) {
	for d, want := range map[time.Duration]string{
		10 * time.Minute: "10 minutes",
		time.Minute:      "1 minute",
		2 * time.Hour:    "2 hours",
		90 * time.Minute: "90 minutes",
		45 * time.Second: "45 seconds",
	} {
		assert.Equal(t, want, humanDuration(d), d.String())
	}
}
