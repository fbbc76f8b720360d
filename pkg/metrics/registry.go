// Package metrics provides Prometheus metrics collection for catalogfs.
//
// Metrics are optional. Until InitRegistry is called every constructor
// returns a no-op implementation, so sessions and mounts run the same code
// path with or without collection enabled.
//
// Usage:
//
//	metrics.InitRegistry()
//	m := prometheus.NewSessionMetrics()
//	session := vfs.NewSession(cat, vfs.StaticEnv(env, creds), vfs.Options{Metrics: m})
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is written once by InitRegistry and read everywhere else.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the global Prometheus registry. Later calls are
// ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
