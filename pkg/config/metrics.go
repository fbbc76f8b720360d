package config

import (
	"github.com/marmos91/catalogfs/pkg/metrics"
	promMetrics "github.com/marmos91/catalogfs/pkg/metrics/prometheus"
)

// MetricsResult contains the metrics components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// SessionMetrics observes session operations (never nil, noop if disabled)
	SessionMetrics metrics.SessionMetrics
}

// InitializeMetrics creates the metrics components.
//
// When enabled it initializes the global Prometheus registry, the HTTP
// server and Prometheus-backed collectors. When disabled it returns a nil
// server and no-op collectors.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Server:         nil,
			SessionMetrics: metrics.NewNoopSessionMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server:         metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port}),
		SessionMetrics: promMetrics.NewSessionMetrics(),
	}
}
