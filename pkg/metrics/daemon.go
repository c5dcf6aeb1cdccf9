package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DaemonMetrics is the daemon's Prometheus surface: registry size, RPC call
// outcomes and latency, and enforcement results. A nil *DaemonMetrics is
// valid and every method on it is a no-op, so callers can hold one
// unconditionally and skip an enabled check at every call site.
type DaemonMetrics struct {
	classesLoaded *prometheus.GaugeVec
	rpcCalls      *prometheus.CounterVec
	rpcDuration   *prometheus.HistogramVec
	enforcements  *prometheus.CounterVec
}

// NewDaemonMetrics registers the daemon's collectors against the
// process-wide registry. Returns nil if metrics are not enabled
// (InitRegistry not called).
func NewDaemonMetrics() *DaemonMetrics {
	if !IsEnabled() {
		return nil
	}
	r := GetRegistry()

	return &DaemonMetrics{
		classesLoaded: promauto.With(r).NewGaugeVec(prometheus.GaugeOpts{
			Name: "userctl_classes_loaded",
			Help: "Number of class definitions currently loaded in the registry.",
		}, []string{"class_dir"}),
		rpcCalls: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "userctl_rpc_calls_total",
			Help: "Total RPC calls handled, by method and outcome error name (empty on success).",
		}, []string{"method", "error"}),
		rpcDuration: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "userctl_rpc_duration_seconds",
			Help:    "RPC call latency in seconds, by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		enforcements: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "userctl_enforcements_total",
			Help: "Total systemctl set-property invocations, by outcome.",
		}, []string{"outcome"}),
	}
}

// SetClassesLoaded records the current registry size for dir.
func (m *DaemonMetrics) SetClassesLoaded(dir string, count int) {
	if m == nil {
		return
	}
	m.classesLoaded.WithLabelValues(dir).Set(float64(count))
}

// RecordRPCCall records one RPC dispatch: method, the stable error name (or
// "" on success), and its duration.
func (m *DaemonMetrics) RecordRPCCall(method, errorName string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.rpcCalls.WithLabelValues(method, errorName).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordEnforcement records one systemctl invocation outcome: "success",
// "nonzero_exit", "signaled", or "spawn_failure".
func (m *DaemonMetrics) RecordEnforcement(outcome string) {
	if m == nil {
		return
	}
	m.enforcements.WithLabelValues(outcome).Inc()
}
