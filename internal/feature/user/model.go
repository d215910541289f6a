// Package user 用户相关接口的请求与响应结构
package user

import (
	"time"

	"instantclip/internal/domain"
)

type SignupRequest struct {
	Name            string  `json:"name"`
	Username        *string `json:"username"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"passwordConfirm"`
}

func (r SignupRequest) Input() domain.CreateUserInput {
	return domain.CreateUserInput{
		Name: r.Name, Username: r.Username, Email: r.Email,
		Password: r.Password, PasswordConfirm: r.PasswordConfirm,
	}
}

// LoginRequest username 与 email 二选一
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// UpdateMeRequest 只允许修改 name / username / email，其余字段在解码时被忽略；
// 带了密码字段直接拒绝，提示走 updatePassword
type UpdateMeRequest struct {
	Name            *string `json:"name"`
	Username        *string `json:"username"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

func (r UpdateMeRequest) HasPassword() bool { return r.Password != nil || r.PasswordConfirm != nil }

func (r UpdateMeRequest) Update() domain.ProfileUpdate {
	return domain.ProfileUpdate{Name: r.Name, Username: r.Username, Email: r.Email}
}

type IDParam struct {
	ID string `uri:"id" binding:"required"`
}

type SetRoleRequest struct {
	Role string `json:"role"`
}

type ListRequest struct {
	Name         string `form:"name"`
	Username     string `form:"username"`
	Email        string `form:"email"`
	Sort         string `form:"sort"`
	Page         int    `form:"page,default=1"`
	Limit        int    `form:"limit,default=10"`
	WithInactive bool   `form:"with_inactive"`
}

func (r ListRequest) Query() domain.ListQuery {
	return domain.ListQuery{
		Name: r.Name, Username: r.Username, Email: r.Email, Sort: r.Sort,
		Page: r.Page, Limit: r.Limit, WithInactive: r.WithInactive,
	}
}

// Profile 用户自己可见的资料
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  *string   `json:"username,omitempty"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func ProfileOf(u *domain.User) Profile {
	return Profile{
		ID: u.ID, Name: u.Name, Username: u.Username, Email: u.Email,
		CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}
}

// AdminView 管理端额外返回 role / active
type AdminView struct {
	Profile
	Role   domain.Role `json:"role"`
	Active bool        `json:"active"`
}

func AdminViewOf(u *domain.User) AdminView {
	return AdminView{Profile: ProfileOf(u), Role: u.Role, Active: u.Active}
}

type TokenResponse struct {
	Token string `json:"token"`
}

type SignupResponse struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

type MeResponse struct {
	User Profile `json:"user"`
}

type UserResponse struct {
	User AdminView `json:"user"`
}

type ListResponse struct {
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Items []AdminView `json:"items"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
