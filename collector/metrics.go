package collector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Login results as exported in the result label.
const (
	ResultSuccess     = "success"
	ResultUnavailable = "unavailable"
	ResultInitFailed  = "initialize_failed"
	ResultLoginFailed = "login_failed"
	ResultError       = "error"
	ResultInvalid     = "invalid_request"
)

type Metrics struct {
	logins        *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	sessionActive prometheus.Gauge
}

func New(registry prometheus.Registerer) *Metrics {
	registry = prometheus.WrapRegistererWithPrefix("mt5_worker_", registry)

	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Login requests handled, by result.",
		}, []string{"result"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "terminal_call_duration_seconds",
			Help:    "Duration of calls into the terminal binding.",
			Buckets: prometheus.DefBuckets,
		}, []string{"call"}),
		sessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "terminal_session_active",
			Help: "Whether a terminal session is currently open.",
		}),
	}
	registry.MustRegister(m.logins, m.callDuration, m.sessionActive)

	return m
}

func (m *Metrics) ObserveLogin(result string) {
	m.logins.WithLabelValues(result).Inc()
}

// TimeCall starts timing a terminal call, the returned func stops it.
func (m *Metrics) TimeCall(call string) func() {
	start := time.Now()
	return func() {
		m.callDuration.WithLabelValues(call).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) SessionOpened() {
	m.sessionActive.Set(1)
}

func (m *Metrics) SessionClosed() {
	m.sessionActive.Set(0)
}
