package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const ResetTokenBytes = 32

// NewResetToken 返回 (明文, sha256 hex)；明文只交给调用方发送，不落库
func NewResetToken() (plain, hash string, err error) {
	b := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}
	plain = hex.EncodeToString(b)
	return plain, SHA256Hex(plain), nil
}

func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
