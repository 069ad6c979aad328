// Package metrics exposes Prometheus counters for the scoring engine
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aimacademy"

// Metrics holds Prometheus metrics for the engine and its HTTP surface
type Metrics struct {
	ChallengeEvaluations *prometheus.CounterVec
	XPCredited           *prometheus.CounterVec
	BadgeUnlocks         *prometheus.CounterVec
	DebuggerSubmissions  *prometheus.CounterVec
	LevelUps             prometheus.Counter
	ActiveRuns           prometheus.Gauge
	RequestDuration      *prometheus.HistogramVec
	RequestsInFlight     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics registers the engine metrics with reg. A fresh registry is
// created when reg is nil.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		ChallengeEvaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "challenge",
				Name:      "evaluations_total",
				Help:      "Challenge evaluations by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		XPCredited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "xp",
				Name:      "credited_total",
				Help:      "XP credited per pool",
			},
			[]string{"pool"},
		),
		BadgeUnlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "badge",
				Name:      "unlocks_total",
				Help:      "Badge unlocks per badge",
			},
			[]string{"badge"},
		),
		DebuggerSubmissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "debugger",
				Name:      "submissions_total",
				Help:      "Debugger level submissions by stars and timeout",
			},
			[]string{"stars", "timed_out"},
		),
		LevelUps: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "xp",
				Name:      "level_ups_total",
				Help:      "Player level-ups",
			},
		),
		ActiveRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "debugger",
				Name:      "active_runs",
				Help:      "In-memory debugger runs",
			},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "HTTP requests currently being served",
			},
		),
		gatherer: reg,
	}
}

// ChallengeEvaluated counts one evaluation
func (m *Metrics) ChallengeEvaluated(mode string, passed bool) {
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	m.ChallengeEvaluations.WithLabelValues(mode, outcome).Inc()
}

// XPAwarded adds to the per-pool XP counter
func (m *Metrics) XPAwarded(pool string, amount int) {
	if amount > 0 {
		m.XPCredited.WithLabelValues(pool).Add(float64(amount))
	}
}

// BadgeUnlocked counts an unlock
func (m *Metrics) BadgeUnlocked(badgeID string) {
	m.BadgeUnlocks.WithLabelValues(badgeID).Inc()
}

// DebuggerSubmitted counts a scored debugger run
func (m *Metrics) DebuggerSubmitted(stars int, timedOut bool) {
	m.DebuggerSubmissions.WithLabelValues(strconv.Itoa(stars), strconv.FormatBool(timedOut)).Inc()
}

// LevelUp counts a level-up
func (m *Metrics) LevelUp() {
	m.LevelUps.Inc()
}

// SetActiveRuns reports the number of open debugger runs
func (m *Metrics) SetActiveRuns(n int) {
	m.ActiveRuns.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request duration and in-flight requests. Routes are
// labelled by method only to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		m.RequestDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
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

// Unwrap lets http.ResponseController reach the underlying writer
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
