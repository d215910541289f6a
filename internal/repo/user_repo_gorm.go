package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"instantclip/internal/domain"
	"instantclip/pkg/utils"
)

// 默认读取不返回 password_hash / role / 重置字段
var publicColumns = []string{
	"id", "name", "username", "email", "password_changed_at", "active", "created_at", "updated_at",
}

// 排序字段白名单：请求字段名 → 列名
var sortable = map[string]string{
	"name":      "name",
	"username":  "username",
	"email":     "email",
	"role":      "role",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

var _ domain.UserRepository = (*UserRepo)(nil)

func activeOnly(db *gorm.DB) *gorm.DB { return db.Where("active = ?", true) }

func (r *UserRepo) users(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.User{}).Scopes(activeOnly)
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = utils.NewID()
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	u.Active = true
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return mapWriteErr("create user", err)
	}
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(r.users(ctx).Select(publicColumns).Where("id = ?", id))
}

func (r *UserRepo) FindAuthByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(r.users(ctx).Where("id = ?", id))
}

func (r *UserRepo) FindByLogin(ctx context.Context, username, email string) (*domain.User, error) {
	q := r.users(ctx)
	switch {
	case username != "" && email != "":
		q = q.Where(r.db.Where("username = ?", username).Or("email = ?", email))
	case username != "":
		q = q.Where("username = ?", username)
	case email != "":
		q = q.Where("email = ?", email)
	default:
		return nil, domain.NotFound("user not found")
	}
	return r.first(q)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(r.users(ctx).Select(publicColumns).Where("email = ?", email))
}

func (r *UserRepo) FindByResetHash(ctx context.Context, hash string, now time.Time) (*domain.User, error) {
	return r.first(r.users(ctx).
		Select(publicColumns).
		Where("reset_token_hash = ? AND reset_token_expires_at > ?", hash, now))
}

func (r *UserRepo) SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	res := r.users(ctx).Where("id = ?", id).Updates(map[string]any{
		"reset_token_hash":       hash,
		"reset_token_expires_at": expiresAt,
	})
	return affected(res, "set reset token", domain.NotFound("user not found"))
}

// ClearResetToken 仅当库里仍是同一个 hash 时才清空，避免覆盖后来的请求
func (r *UserRepo) ClearResetToken(ctx context.Context, id, hash string) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND reset_token_hash = ?", id, hash).
		Updates(map[string]any{
			"reset_token_hash":       nil,
			"reset_token_expires_at": nil,
		})
	return affected(res, "clear reset token", domain.NotFound("no pending reset"))
}

// UpdatePassword 单条条件 UPDATE：改密同时清空重置字段。
// ExpectedReset 非空时要求令牌仍匹配且未过期，并发消费同一令牌只会有一个成功
func (r *UserRepo) UpdatePassword(ctx context.Context, p domain.PasswordUpdate) error {
	q := r.users(ctx).Where("id = ?", p.UserID)
	notFound := domain.NotFound("user not found")
	if p.ExpectedReset != nil {
		q = q.Where("reset_token_hash = ? AND reset_token_expires_at > ?", *p.ExpectedReset, p.Now)
		notFound = domain.TokenInvalid("token is invalid or has expired")
	}
	res := q.Updates(map[string]any{
		"password_hash":          p.PasswordHash,
		"password_changed_at":    p.ChangedAt,
		"reset_token_hash":       nil,
		"reset_token_expires_at": nil,
	})
	return affected(res, "update password", notFound)
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id string, p domain.ProfileUpdate) (*domain.User, error) {
	fields := map[string]any{}
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Username != nil {
		fields["username"] = *p.Username
	}
	if p.Email != nil {
		fields["email"] = *p.Email
	}
	if len(fields) > 0 {
		res := r.users(ctx).Where("id = ?", id).Updates(fields)
		if err := affected(res, "update profile", domain.NotFound("user not found")); err != nil {
			return nil, err
		}
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepo) SetRole(ctx context.Context, id string, role domain.Role) error {
	if !role.Valid() {
		return domain.Validation(fmt.Sprintf("invalid role %q", role))
	}
	res := r.users(ctx).Where("id = ?", id).Update("role", role)
	return affected(res, "set role", domain.NotFound("user not found"))
}

func (r *UserRepo) Deactivate(ctx context.Context, id string) error {
	res := r.users(ctx).Where("id = ?", id).Update("active", false)
	return affected(res, "deactivate user", domain.NotFound("user not found"))
}

// HardDelete 不经过 active 过滤，只给管理端使用
func (r *UserRepo) HardDelete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.User{})
	return affected(res, "delete user", domain.NotFound("user not found"))
}

func (r *UserRepo) List(ctx context.Context, lq domain.ListQuery) ([]domain.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.User{})
	if !lq.WithInactive {
		q = q.Scopes(activeOnly)
	}
	for col, v := range map[string]string{"name": lq.Name, "username": lq.Username, "email": lq.Email} {
		if s := strings.TrimSpace(v); s != "" {
			q = q.Where("LOWER("+col+") LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(s))+"%")
		}
	}

	order, err := orderBy(lq.Sort)
	if err != nil {
		return nil, 0, err
	}
	// Count 与 Find 复用同一组条件
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, domain.Internal("count users failed", err)
	}

	page, limit := lq.Window()

	var us []domain.User
	err = q.Select(append(publicColumns[:len(publicColumns):len(publicColumns)], "role")).
		Order(order).
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&us).Error
	if err != nil {
		return nil, 0, domain.Internal("list users failed", err)
	}
	return us, total, nil
}

func orderBy(sort string) (clause.OrderBy, error) {
	var cols []clause.OrderByColumn
	for _, f := range strings.Split(sort, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		desc := strings.HasPrefix(f, "-")
		col, ok := sortable[strings.TrimPrefix(f, "-")]
		if !ok {
			return clause.OrderBy{}, domain.Validation(fmt.Sprintf("cannot sort by %q", strings.TrimPrefix(f, "-")))
		}
		cols = append(cols, clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: desc})
	}
	if len(cols) == 0 {
		cols = append(cols, clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true})
	}
	// 保证分页稳定
	cols = append(cols, clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	return clause.OrderBy{Columns: cols}, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(s)
}

func (r *UserRepo) first(q *gorm.DB) (*domain.User, error) {
	var u domain.User
	err := q.Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("user not found")
	}
	if err != nil {
		return nil, domain.Internal("query user failed", err)
	}
	return &u, nil
}

func affected(res *gorm.DB, op string, zero error) error {
	if res.Error != nil {
		return mapWriteErr(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return zero
	}
	return nil
}

func mapWriteErr(op string, err error) error {
	if isDupKey(err) {
		if field := dupField(err); field != "" {
			return domain.Conflict("duplicate value for field " + field + ", already in use")
		}
		return domain.Conflict("duplicate value, already in use")
	}
	return domain.Internal(op+" failed", err)
}

func isDupKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// 不依赖 gorm.ErrDuplicatedKey（需开启 TranslateError），按各驱动的报错文本兜底
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation") ||
		strings.Contains(msg, "duplicate key")
}

func dupField(err error) string {
	msg := strings.ToLower(err.Error())
	for _, f := range []string{"email", "username"} {
		if strings.Contains(msg, f) {
			return f
		}
	}
	return ""
}
