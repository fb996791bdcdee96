package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portal", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portal", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	SubscriptionsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "portal", Name: "subscriptions_open", Help: "Live store subscriptions currently open, by kind (document|query)."},
		[]string{"kind"},
	)
	Snapshots = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portal", Name: "snapshots_total", Help: "Snapshots applied by the feed synchronizer, by category."},
		[]string{"category"},
	)
	Writes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portal", Name: "writes_total", Help: "Document writes by collection and outcome."},
		[]string{"collection", "outcome"},
	)
	AuthFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portal", Name: "auth_failures_total", Help: "Rejected identity operations by error code."},
		[]string{"code"},
	)
	SessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "portal", Name: "session_transitions_total", Help: "Session controller transitions by target status."},
		[]string{"status"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(SubscriptionsOpen)
	reg.MustRegister(Snapshots)
	reg.MustRegister(Writes)
	reg.MustRegister(AuthFailures)
	reg.MustRegister(SessionTransitions)
}
