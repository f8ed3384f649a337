package auth0

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for authorization decisions and key fetches.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	decisionsTotal    *prometheus.CounterVec
	jwksFetchTotal    *prometheus.CounterVec
	jwksFetchDuration prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "coffee_shop"
	}

	m := &Metrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "decisions_total",
				Help:      "Authorization gate decisions by permission and outcome",
			},
			[]string{"permission", "outcome"},
		),
		jwksFetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "jwks_fetch_total",
				Help:      "JWKS fetches by status",
			},
			[]string{"status"},
		),
		jwksFetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "jwks_fetch_duration_seconds",
				Help:      "JWKS fetch duration in seconds, retries included",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.decisionsTotal, m.jwksFetchTotal, m.jwksFetchDuration)
	}

	return m
}

func (m *Metrics) observeDecision(permission string, kind ErrorKind) {
	if m == nil {
		return
	}
	outcome := "authorized"
	if kind != "" {
		outcome = string(kind)
	}
	m.decisionsTotal.WithLabelValues(permission, outcome).Inc()
}

func (m *Metrics) observeJWKSFetch(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	m.jwksFetchTotal.WithLabelValues(status).Inc()
	m.jwksFetchDuration.Observe(d.Seconds())
}
