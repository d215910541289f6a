package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	resp "instantclip/internal/transport/http/response"
)

// ConcurrencyLimit 同时处理的请求数上限为 max；满了最多排队 wait，超时回 503 + Retry-After。
// 登录/注册的 bcrypt 还会在 auth.Hasher 里再排一次队
func ConcurrencyLimit(max int64, wait time.Duration) gin.HandlerFunc {
	sem := semaphore.NewWeighted(max)
	return func(c *gin.Context) {
		if !sem.TryAcquire(1) {
			ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
			err := sem.Acquire(ctx, 1)
			cancel()
			if err != nil {
				httpRejected.WithLabelValues("busy").Inc()
				c.Header("Retry-After", "1")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, resp.Error(resp.CodeUnavailable, "server busy, try again later"))
				return
			}
		}
		defer sem.Release(1)
		c.Next()
	}
}
