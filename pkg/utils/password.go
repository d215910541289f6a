package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrEmptyPassword = errors.New("password must not be empty")

// HashPassword cost 越界时由 bcrypt 回退到 DefaultCost
func HashPassword(pw string, cost int) (string, error) {
	if pw == "" {
		return "", ErrEmptyPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(pw, hashed string) bool {
	if pw == "" || hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw)) == nil
}

// HashCost 读出已有哈希的 cost，解析失败返回 0
func HashCost(hashed string) int {
	c, err := bcrypt.Cost([]byte(hashed))
	if err != nil {
		return 0
	}
	return c
}
