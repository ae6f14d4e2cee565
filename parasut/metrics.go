package parasut

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics zbiera metryki Prometheus dla wywołań Paraşüt. Metody są bezpieczne
// dla nil, więc metryki są opcjonalne.
type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	tokenRefresh *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parasut_requests_total",
			Help: "Paraşüt API calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parasut_request_duration_seconds",
			Help:    "Paraşüt API call duration in seconds, retries included.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parasut_token_refresh_total",
			Help: "OAuth token acquisitions by grant and outcome.",
		}, []string{"grant", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parasut_mapping_fallback_total",
			Help: "Values mapped through a default because the lookup table had no entry.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration, m.tokenRefresh, m.fallbacks)
	}
	return m
}

func (m *Metrics) observeRequest(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) tokenRefreshed(grant, outcome string) {
	if m == nil {
		return
	}
	m.tokenRefresh.WithLabelValues(grant, outcome).Inc()
}

func (m *Metrics) fallback(kind string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(kind).Inc()
}
