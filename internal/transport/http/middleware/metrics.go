package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "instantclip_http_requests_total",
		Help: "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "instantclip_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"route", "method"})

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "instantclip_http_requests_in_flight",
		Help: "HTTP requests currently being served",
	})

	// 被保护性中间件拒绝或截断的请求
	httpRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "instantclip_http_rejected_total",
		Help: "HTTP requests rejected by rate limit, concurrency limit or timeout",
	}, []string{"reason"}) // rate / busy / timeout
)

func init() { prometheus.MustRegister(httpRequests, httpDuration, httpInFlight, httpRejected) }

// Metrics bcrypt 在登录/注册路径上占大头，桶上限放到 5s
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		c.Next()

		route := routeOf(c)
		httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
