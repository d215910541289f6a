package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "instantclip/internal/transport/http/response"
)

// PanicResponse 配合 ginzap.CustomRecoveryWithZap 使用：日志由 ginzap 记录，这里只负责响应体
func PanicResponse(c *gin.Context, _ any) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, resp.Error(resp.CodeServerError, "something went wrong"))
}
