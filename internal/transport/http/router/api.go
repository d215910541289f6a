package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"instantclip/internal/core/server"
	httpez "instantclip/internal/transport/http/ez"
	mdw "instantclip/internal/transport/http/middleware"
	resp "instantclip/internal/transport/http/response"
)

// Options 两个 engine 共用的中间件参数
type Options struct {
	Debug          bool // 开发环境：错误响应附带内部细节
	RPS            rate.Limit
	Burst          int
	MaxConcurrent  int64
	QueueWait      time.Duration // 并发满时最多排队多久
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.RPS <= 0 {
		o.RPS = 200
	}
	if o.Burst <= 0 {
		o.Burst = 400
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 300
	}
	if o.QueueWait <= 0 {
		o.QueueWait = 2 * time.Second
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 1 << 20
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	return o
}

func newEngine(l *zap.Logger, o Options) *gin.Engine {
	r := server.NewRouter(l, mdw.PanicResponse)
	r.Use(
		mdw.RequestID(),
		mdw.AccessLog(l),
		mdw.RateLimit(o.RPS, o.Burst),
		mdw.ConcurrencyLimit(o.MaxConcurrent, o.QueueWait),
		mdw.MaxBodyBytes(o.MaxBodyBytes),
		mdw.Timeout(o.RequestTimeout),
		mdw.Metrics(),
	)

	// 健康检查 / 指标
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, resp.OK(gin.H{"ok": 1})) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, resp.Error(resp.CodeNotFound, "route not found on this server"))
	})
	return r
}

// NewAPIEngine 用户端：/api/v1
func NewAPIEngine(l *zap.Logger, authn mdw.Authenticator, reg *Registry, o Options) *gin.Engine {
	o = o.withDefaults()
	r := newEngine(l, o)
	errs := resp.Errors{Debug: o.Debug, Log: l}

	api := r.Group("/api/v1")
	// 鉴权分组与公共分组同前缀，只是多挂了 Protect
	private := api.Group("")
	private.Use(mdw.Protect(authn, errs))

	reg.MountAllAPI(httpez.Groups{
		Public:  httpez.New(api, errs),
		Private: httpez.New(private, errs),
	})
	return r
}
