package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alexlup06-authgate/memberauth-go/memberauth"
)

// Metrics exports session core counters to Prometheus.
type Metrics struct {
	RefreshesTotal        *prometheus.CounterVec
	GatewayResponsesTotal *prometheus.CounterVec
	GuardDecisionsTotal   *prometheus.CounterVec

	// Portal HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
}

var _ memberauth.Metrics = (*Metrics)(nil)

// NewMetrics registers the collectors with reg. A nil reg uses the default
// registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RefreshesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memberauth_refreshes_total",
				Help: "Completed refresh flights by outcome",
			},
			[]string{"outcome"},
		),
		GatewayResponsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memberauth_gateway_responses_total",
				Help: "Responses returned by the authenticated request gateway",
			},
			[]string{"status", "retried"},
		),
		GuardDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memberauth_guard_decisions_total",
				Help: "Route guard mounts settled, by final state",
			},
			[]string{"state"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "Portal HTTP request latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_http_requests_total",
				Help: "Total number of portal HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (m *Metrics) RefreshCompleted(outcome string) {
	m.RefreshesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GatewayResponse(status int, retried bool) {
	m.GatewayResponsesTotal.WithLabelValues(strconv.Itoa(status), strconv.FormatBool(retried)).Inc()
}

func (m *Metrics) GuardDecided(state memberauth.GuardState) {
	m.GuardDecisionsTotal.WithLabelValues(state.String()).Inc()
}

// ObserveHTTP records one served portal request.
func (m *Metrics) ObserveHTTP(method, route string, status int, seconds float64) {
	s := strconv.Itoa(status)
	m.HTTPRequestDuration.WithLabelValues(method, route, s).Observe(seconds)
	m.HTTPRequestsTotal.WithLabelValues(method, route, s).Inc()
}
