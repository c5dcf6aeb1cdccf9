// Package metrics holds the Prometheus registry userctld's ambient HTTP
// surface exposes at /metrics, plus the domain-specific collectors other
// packages record against. Metrics are opt-in: until InitRegistry is
// called, every collector constructor returns nil and recording methods are
// no-ops, the same zero-overhead-when-disabled contract the host daemon
// applies to its own Prometheus integration.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu  sync.RWMutex
	reg *prometheus.Registry
)

// InitRegistry creates and installs the process-wide metrics registry,
// enabling every metrics constructor in this package and its domain
// subpackages.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	reg = prometheus.NewRegistry()
	return reg
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return reg != nil
}

// GetRegistry returns the process-wide registry, or nil if metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return reg
}
