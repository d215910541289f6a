package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MinPasswordLen = 8
	// bcrypt 只处理前 72 字节
	MaxPasswordBytes = 72
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 报错字段名用 json tag，与请求体保持一致
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// CreateUserInput 注册入参；PasswordConfirm 只参与校验，不落库
type CreateUserInput struct {
	Name            string  `json:"name" validate:"required,max=40"`
	Username        *string `json:"username" validate:"omitempty,min=3,max=64"`
	Email           string  `json:"email" validate:"required,email,max=191"`
	Password        string  `json:"password" validate:"required,min=8"`
	PasswordConfirm string  `json:"passwordConfirm" validate:"required"`
}

func (in *CreateUserInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	in.Username = normalizeUsername(in.Username)
}

func (in *CreateUserInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return translate(err)
	}
	return ValidatePassword(in.Password, in.PasswordConfirm)
}

// ValidatePassword 注册、改密、重置共用同一套规则
func ValidatePassword(pw, confirm string) error {
	switch {
	case pw == "":
		return Validation("please provide a password")
	case len([]rune(pw)) < MinPasswordLen:
		return Validation(fmt.Sprintf("password must be at least %d characters", MinPasswordLen))
	case len(pw) > MaxPasswordBytes:
		return Validation(fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes))
	case pw != confirm:
		return Validation("passwords are not the same")
	}
	return nil
}

func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email,max=191"); err != nil {
		return Validation("please provide a valid email")
	}
	return nil
}

func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func normalizeUsername(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Normalize 去掉首尾空白；email 统一小写
func (p *ProfileUpdate) Normalize() {
	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		p.Name = &v
	}
	if p.Email != nil {
		v := NormalizeEmail(*p.Email)
		p.Email = &v
	}
	if p.Username != nil {
		v := strings.TrimSpace(*p.Username)
		p.Username = &v
	}
}

type profileRules struct {
	Name     *string `json:"name" validate:"omitnil,min=1,max=40"`
	Username *string `json:"username" validate:"omitnil,min=3,max=64"`
	Email    *string `json:"email" validate:"omitnil,email,max=191"`
}

func (p *ProfileUpdate) Validate() error {
	if p.Name == nil && p.Username == nil && p.Email == nil {
		return Validation("nothing to update")
	}
	err := validate.Struct(profileRules{Name: p.Name, Username: p.Username, Email: p.Email})
	if err != nil {
		return translate(err)
	}
	return nil
}

// translate 把 validator 的报错转换成可直接展示的 Validation 错误
func translate(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return Internal("validate input", err)
	}
	msgs := make([]string, 0, len(ves))
	for _, fe := range ves {
		msgs = append(msgs, fieldMessage(fe))
	}
	return Validation(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return "please provide your " + f
	case "email":
		return "please provide a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", f, fe.Param())
		}
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", f, fe.Param())
		}
	}
	return fmt.Sprintf("%s is invalid (%s)", f, fe.Tag())
}
