package service

import "github.com/prometheus/client_golang/prometheus"

var authEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "instantclip_auth_events_total",
		Help: "Count of authentication events by outcome",
	},
	[]string{"event", "outcome"},
)

func init() { prometheus.MustRegister(authEvents) }

const (
	evSignup        = "signup"
	evLogin         = "login"
	evSession       = "session"
	evPasswordReset = "password_reset_request"
	evResetConsume  = "password_reset_consume"
	evPasswordEdit  = "password_update"
)

func observe(event string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	authEvents.WithLabelValues(event, outcome).Inc()
}
