package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instantclip/internal/core/database/dbtest"
	"instantclip/internal/domain"
)

func strPtr(s string) *string { return &s }

func seedUser(t *testing.T, r *UserRepo, email string, username *string) *domain.User {
	t.Helper()
	u := &domain.User{Name: "Test", Email: email, Username: username, PasswordHash: "hash-" + email}
	require.NoError(t, r.Create(context.Background(), u))
	return u
}

func TestUserRepo_CreateDefaults(t *testing.T) {
	r := NewUserRepo(dbtest.New(t))
	u := seedUser(t, r, "a@example.com", nil)

	assert.Len(t, u.ID, 36)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.True(t, u.Active)
	assert.False(t, u.CreatedAt.IsZero())
	assert.Nil(t, u.PasswordChangedAt)
}

func TestUserRepo_CreateDuplicate(t *testing.T) {
	r := NewUserRepo(dbtest.New(t))
	seedUser(t, r, "a@example.com", strPtr("alice"))

	err := r.Create(context.Background(), &domain.User{Name: "X", Email: "a@example.com", PasswordHash: "h"})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), "email")

	err = r.Create(context.Background(), &domain.User{Name: "X", Email: "b@example.com", Username: strPtr("alice"), PasswordHash: "h"})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), "username")

	// 多个 username 为空的用户互不冲突
	seedUser(t, r, "c@example.com", nil)
	seedUser(t, r, "d@example.com", nil)
}

func TestUserRepo_DefaultProjection(t *testing.T) {
	r := NewUserRepo(dbtest.New(t))
	u := seedUser(t, r, "a@example.com", nil)
	ctx := context.Background()

	got, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)
	assert.Empty(t, got.PasswordHash)
	assert.Empty(t, got.Role)

	full, err := r.FindAuthByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-a@example.com", full.PasswordHash)
	assert.Equal(t, domain.RoleUser, full.Role)
}

func TestUserRepo_FindByLogin(t *testing.T) {
	r := NewUserRepo(dbtest.New(t))
	u := seedUser(t, r, "a@example.com", strPtr("alice"))
	ctx := context.Background()

	for _, tc := range []struct{ username, email string }{
		{"alice", ""},
		{"", "a@example.com"},
		{"alice", "nobody@example.com"},
		{"nobody", "a@example.com"},
	} {
		got, err := r.FindByLogin(ctx, tc.username, tc.email)
		require.NoError(t, err, tc)
		assert.Equal(t, u.ID, got.ID)
		assert.NotEmpty(t, got.PasswordHash)
	}

	_, err := r.FindByLogin(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.FindByLogin(ctx, "bob", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_InactiveHidden(t *testing.T) {
	r := NewUserRepo(dbtest.New(t))
	u := seedUser(t, r, "a@example.com", nil)
	ctx := context.Background()

	require.NoError(t, r.Deactivate(ctx, u.ID))

	_, err := r.FindByID(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.FindByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.FindByLogin(ctx, "", "a@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// 第二次停用：已不可见
	assert.ErrorIs(t, r.Deactivate(ctx, u.ID), domain.ErrNotFound)

	list, total, err := r.List(ctx, domain.ListQuery{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	list, total, err = r.List(ctx, domain.ListQuery{WithInactive: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)
	assert.False(t, list[0].Active)
}

func TestUserRepo_ResetTokenLifecycle(t *testing.T) {
	r := NewUserRepo(dbtest.New(t))
	u := seedUser(t, r, "a@example.com", nil)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, r.SetResetToken(ctx, u.ID, "hash-1", now.Add(10*time.Minute)))

	got, err := r.FindByResetHash(ctx, "hash-1", now)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	// 过期后查不到
	_, err = r.FindByResetHash(ctx, "hash-1", now.Add(11*time.Minute))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// 只有同一个 hash 才会被清空
	assert.ErrorIs(t, r.ClearResetToken(ctx, u.ID, "other"), domain.ErrNotFound)
	require.NoError(t, r.ClearResetToken(ctx, u.ID, "hash-1"))

	full, err := r.FindAuthByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, full.ResetTokenHash)
	assert.Nil(t, full.ResetTokenExpiresAt)
}

func TestUserRepo_UpdatePasswordConditional(t *testing.T) {
	r := NewUserRepo(dbtest.New(t))
	u := seedUser(t, r, "a@example.com", nil)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, r.SetResetToken(ctx, u.ID, "hash-1", now.Add(10*time.Minute)))

	// 令牌不匹配
	err := r.UpdatePassword(ctx, domain.PasswordUpdate{
		UserID: u.ID, PasswordHash: "new", ChangedAt: now, ExpectedReset: strPtr("hash-2"), Now: now,
	})
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	// 令牌已过期
	err = r.UpdatePassword(ctx, domain.PasswordUpdate{
		UserID: u.ID, PasswordHash: "new", ChangedAt: now, ExpectedReset: strPtr("hash-1"), Now: now.Add(time.Hour),
	})
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	require.NoError(t, r.UpdatePassword(ctx, domain.PasswordUpdate{
		UserID: u.ID, PasswordHash: "new", ChangedAt: now, ExpectedReset: strPtr("hash-1"), Now: now,
	}))

	full, err := r.FindAuthByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", full.PasswordHash)
	require.NotNil(t, full.PasswordChangedAt)
	assert.Equal(t, now.Unix(), full.PasswordChangedAt.Unix())
	assert.Nil(t, full.ResetTokenHash)
	assert.Nil(t, full.ResetTokenExpiresAt)

	// 已消费，再次使用失败
	err = r.UpdatePassword(ctx, domain.PasswordUpdate{
		UserID: u.ID, PasswordHash: "newer", ChangedAt: now, ExpectedReset: strPtr("hash-1"), Now: now,
	})
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestUserRepo_UpdatePasswordRace(t *testing.T) {
	r := NewUserRepo(dbtest.New(t))
	u := seedUser(t, r, "a@example.com", nil)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, r.SetResetToken(ctx, u.ID, "hash-1", now.Add(10*time.Minute)))

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- r.UpdatePassword(ctx, domain.PasswordUpdate{
				UserID: u.ID, PasswordHash: fmt.Sprintf("new-%d", i), ChangedAt: now,
				ExpectedReset: strPtr("hash-1"), Now: now,
			})
		}(i)
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	}
	assert.Equal(t, 1, ok)
}

func TestUserRepo_UpdateProfile(t *testing.T) {
	r := NewUserRepo(dbtest.New(t))
	u := seedUser(t, r, "a@example.com", nil)
	seedUser(t, r, "b@example.com", strPtr("bob"))
	ctx := context.Background()

	got, err := r.UpdateProfile(ctx, u.ID, domain.ProfileUpdate{Name: strPtr("Alice"), Username: strPtr("alice")})
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	require.NotNil(t, got.Username)
	assert.Equal(t, "alice", *got.Username)
	assert.Equal(t, "a@example.com", got.Email)

	_, err = r.UpdateProfile(ctx, u.ID, domain.ProfileUpdate{Username: strPtr("bob")})
	assert.ErrorIs(t, err, domain.ErrConflict)

	// 空更新直接返回当前数据
	got, err = r.UpdateProfile(ctx, u.ID, domain.ProfileUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	_, err = r.UpdateProfile(ctx, "missing", domain.ProfileUpdate{Name: strPtr("x")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepo_SetRoleAndHardDelete(t *testing.T) {
	r := NewUserRepo(dbtest.New(t))
	u := seedUser(t, r, "a@example.com", nil)
	ctx := context.Background()

	require.NoError(t, r.SetRole(ctx, u.ID, domain.RoleDeveloper))
	full, err := r.FindAuthByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDeveloper, full.Role)

	assert.ErrorIs(t, r.SetRole(ctx, u.ID, domain.Role("root")), domain.ErrValidation)

	// 硬删除不受 active 影响
	require.NoError(t, r.Deactivate(ctx, u.ID))
	require.NoError(t, r.HardDelete(ctx, u.ID))
	assert.ErrorIs(t, r.HardDelete(ctx, u.ID), domain.ErrNotFound)

	_, total, err := r.List(ctx, domain.ListQuery{WithInactive: true})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestUserRepo_List(t *testing.T) {
	r := NewUserRepo(dbtest.New(t))
	ctx := context.Background()
	for i, name := range []string{"Charlie", "alice", "Bob", "100%_real"} {
		u := &domain.User{Name: name, Email: fmt.Sprintf("u%d@example.com", i), PasswordHash: "h"}
		require.NoError(t, r.Create(ctx, u))
	}

	list, total, err := r.List(ctx, domain.ListQuery{Sort: "name"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, list, 4)
	assert.Equal(t, "100%_real", list[0].Name)
	assert.Equal(t, domain.RoleUser, list[0].Role)
	assert.Empty(t, list[0].PasswordHash)

	list, total, err = r.List(ctx, domain.ListQuery{Name: "ALI"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "alice", list[0].Name)

	// % 与 _ 按字面匹配
	list, total, err = r.List(ctx, domain.ListQuery{Name: "%_"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "100%_real", list[0].Name)

	list, total, err = r.List(ctx, domain.ListQuery{Sort: "-email", Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, list, 1)
	assert.Equal(t, "u0@example.com", list[0].Email)

	_, _, err = r.List(ctx, domain.ListQuery{Sort: "password_hash"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
