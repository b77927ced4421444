// Package metrics — метрики Prometheus для HTTP и движка подписок.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/finwire/finwire/internal/models"
)

const namespace = "finwire"

// Metrics собирает счётчики приложения. Методы безопасны для nil-получателя.
type Metrics struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	sweeps      *prometheus.CounterVec
	swept       prometheus.Counter
}

// New регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "transitions_total",
			Help:      "Subscription state transitions by target state and trigger.",
		}, []string{"to", "trigger"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "runs_total",
			Help:      "Expiry sweep runs by result.",
		}, []string{"result"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweeper",
			Name:      "expired_total",
			Help:      "Subscriptions expired by the sweeper.",
		}),
	}
	reg.MustRegister(m.requests, m.latency, m.transitions, m.sweeps, m.swept)
	return m
}

// ObserveRequest учитывает завершённый HTTP-запрос.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveTransition учитывает переход подписки.
func (m *Metrics) ObserveTransition(tr models.Transition) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(tr.To), string(tr.Trigger)).Inc()
}

// ObserveSweep учитывает прогон sweeper-а.
func (m *Metrics) ObserveSweep(expired int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sweeps.WithLabelValues("error").Inc()
		return
	}
	m.sweeps.WithLabelValues("ok").Inc()
	m.swept.Add(float64(expired))
}
