package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	resp "instantclip/internal/transport/http/response"
)

const KeyRequestID = resp.KeyRequestID

const maxRequestIDLen = 64

// RequestID 沿用上游网关的 X-Request-ID，格式不可信时（过长、含空白或控制字符）重新生成
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(KeyRequestID)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}
		c.Header(KeyRequestID, rid)
		c.Set(KeyRequestID, rid)
		c.Next()
	}
}

// validRequestID 只接受 [A-Za-z0-9._:-]
func validRequestID(s string) bool {
	if s == "" || len(s) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.', ch == ':':
		default:
			return false
		}
	}
	return true
}
