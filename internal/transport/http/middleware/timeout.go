package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	resp "instantclip/internal/transport/http/response"
)

// Timeout 请求 ctx 的截止时间，DB、邮件发送和 bcrypt 排队都受它约束。
// handler 已经写出响应（比如把超时映射成了 500）时不再覆盖
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return
		}
		httpRejected.WithLabelValues("timeout").Inc()
		if !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, resp.Error(resp.CodeTimeout, "request timed out"))
		}
	}
}
