package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/semmy-space/monthend/internal/vault"
)

// metrics are per server so tests and multiple servers never share counters.
// No label ever carries a session id.
type metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	unlocks  *prometheus.CounterVec
}

func newMetrics(reg *vault.Registry) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "monthend",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "monthend",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s; unlock is KDF-bound
			},
			[]string{"method", "route"},
		),
		unlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "monthend",
				Subsystem: "session",
				Name:      "unlock_attempts_total",
				Help:      "Unlock attempts by outcome.",
			},
			[]string{"outcome"},
		),
	}
	sessions := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "monthend",
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently registered.",
		},
		func() float64 { return float64(reg.Len()) },
	)
	m.registry.MustRegister(m.requests, m.duration, m.unlocks, sessions)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) unlock(outcome string) {
	m.unlocks.WithLabelValues(outcome).Inc()
}

// instrument records request counts and latency under the matched route
// pattern, so ids in paths or headers never become label values.
func (m *metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
