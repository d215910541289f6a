package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	httpez "instantclip/internal/transport/http/ez"
	mdw "instantclip/internal/transport/http/middleware"
	resp "instantclip/internal/transport/http/response"
)

// NewAdminEngine 管理端：/admin/v1，整组要求登录，角色按接口限定
func NewAdminEngine(l *zap.Logger, authn mdw.Authenticator, reg *Registry, o Options) *gin.Engine {
	o = o.withDefaults()
	r := newEngine(l, o)
	errs := resp.Errors{Debug: o.Debug, Log: l}

	admin := r.Group("/admin/v1")
	admin.Use(mdw.Protect(authn, errs))

	reg.MountAllAdmin(httpez.Groups{
		Public:  httpez.New(r.Group("/admin/v1"), errs),
		Private: httpez.New(admin, errs),
	})
	return r
}
