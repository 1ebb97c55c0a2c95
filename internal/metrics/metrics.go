// Package metrics exposes Prometheus counters for tool lifecycle activity.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/erazemk/orodjarna/internal/apperr"
)

// Metrics records lifecycle, cart and HTTP activity. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	transitions     *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	historyWarnings prometheus.Counter
	cartEntries     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers the metrics on reg. A nil registerer yields a no-op value.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orodjarna_transitions_total",
			Help: "Tool status transitions applied.",
		}, []string{"from", "to"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orodjarna_rejections_total",
			Help: "Lifecycle operations that failed, by operation and error code.",
		}, []string{"op", "code"}),
		historyWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orodjarna_history_warnings_total",
			Help: "Extra open export events found while resolving history.",
		}),
		cartEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orodjarna_cart_entries_total",
			Help: "Cart entries committed, by cart mode and result.",
		}, []string{"mode", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orodjarna_http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orodjarna_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.transitions, m.rejections, m.historyWarnings,
		m.cartEntries, m.httpRequests, m.httpDuration)
	return m
}

// Transition counts an applied status change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// Rejection counts a failed lifecycle operation by its error code.
func (m *Metrics) Rejection(op string, err error) {
	if m == nil || err == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(op), string(apperr.CodeOf(err))).Inc()
}

// HistoryWarnings adds n integrity warnings.
func (m *Metrics) HistoryWarnings(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.historyWarnings.Add(float64(n))
}

// CartCommit records the outcome of one cart commit.
func (m *Metrics) CartCommit(mode string, succeeded, failed int) {
	if m == nil {
		return
	}
	mode = normalizeLabel(mode)
	m.cartEntries.WithLabelValues(mode, "succeeded").Add(float64(succeeded))
	m.cartEntries.WithLabelValues(mode, "failed").Add(float64(failed))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
