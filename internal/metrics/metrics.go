// Package metrics exposes supervisor activity as Prometheus metrics on a
// private registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	serverUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "railsvisor",
		Name:      "server_up",
		Help:      "Whether the last lifecycle operation left the server running (1) or stopped (0).",
	})

	lifecycleTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "railsvisor",
		Name:      "lifecycle_total",
		Help:      "Start, stop and restart operations by outcome.",
	}, []string{"action", "result"})

	signalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "railsvisor",
		Name:      "signals_total",
		Help:      "Signals sent to supervised processes by delivery outcome.",
	}, []string{"signal", "result"})

	waitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "railsvisor",
		Name:      "wait_duration_seconds",
		Help:      "Time spent polling the pid file.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"phase"})
)

func init() {
	registry.MustRegister(serverUp, lifecycleTotal, signalsTotal, waitDuration)
}

// Registry returns the Prometheus registry containing all railsvisor metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetServerUp records whether the server is believed to be running.
func SetServerUp(up bool) {
	value := 0.0
	if up {
		value = 1.0
	}
	serverUp.Set(value)
}

// ObserveLifecycle counts a start, stop or restart and its outcome.
func ObserveLifecycle(action string, ok bool) {
	lifecycleTotal.WithLabelValues(action, result(ok)).Inc()
}

// ObserveSignal counts a signal delivery attempt. outcome is the delivery
// outcome label, e.g. "delivered" or "no_such_process".
func ObserveSignal(signal, outcome string) {
	if signal == "" {
		signal = "unknown"
	}
	signalsTotal.WithLabelValues(signal, outcome).Inc()
}

// ObserveWait records how long a pid file poll took.
func ObserveWait(phase string, d time.Duration) {
	waitDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
