package prometheus

import (
	"errors"
	"time"

	"github.com/marmos91/catalogfs/pkg/metrics"
	"github.com/marmos91/catalogfs/pkg/vfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sessionMetrics is the Prometheus implementation of metrics.SessionMetrics.
type sessionMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesWritten      prometheus.Counter
	openDescriptors   prometheus.Gauge
	streamOpen        prometheus.Gauge
	connected         prometheus.Gauge
}

// NewSessionMetrics creates a Prometheus-backed SessionMetrics.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewSessionMetrics() metrics.SessionMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopSessionMetrics()
	}

	reg := metrics.GetRegistry()

	return &sessionMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogfs_session_operations_total",
				Help: "Total number of session operations by operation and status",
			},
			[]string{"operation", "status", "error_code"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "catalogfs_session_operation_duration_milliseconds",
				Help: "Duration of session operations in milliseconds",
				Buckets: []float64{
					0.1,  // 100us
					1,    // 1ms
					10,   // 10ms
					100,  // 100ms
					1000, // 1s
				},
			},
			[]string{"operation"},
		),
		bytesWritten: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "catalogfs_session_bytes_written_total",
				Help: "Total bytes written to data objects",
			},
		),
		openDescriptors: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "catalogfs_session_open_descriptors",
				Help: "Current number of open data object descriptors",
			},
		),
		streamOpen: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "catalogfs_session_directory_stream_open",
				Help: "1 while the directory stream is open, 0 otherwise",
			},
		),
		connected: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "catalogfs_session_connected",
				Help: "1 while the session holds a live catalog connection",
			},
		),
	}
}

func (m *sessionMetrics) ObserveOperation(op string, duration time.Duration, err error) {
	status, code := "success", ""
	switch {
	case errors.Is(err, vfs.ErrStreamExhausted):
		status = "end_of_stream"
	case err != nil:
		status = "error"
		code = errorCode(err)
	}
	m.operationsTotal.WithLabelValues(op, status, code).Inc()
	m.operationDuration.WithLabelValues(op).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *sessionMetrics) RecordBytesWritten(n int) {
	if n > 0 {
		m.bytesWritten.Add(float64(n))
	}
}

func (m *sessionMetrics) SetOpenDescriptors(n int) {
	m.openDescriptors.Set(float64(n))
}

func (m *sessionMetrics) SetStreamOpen(open bool) {
	m.streamOpen.Set(boolGauge(open))
}

func (m *sessionMetrics) SetConnected(connected bool) {
	m.connected.Set(boolGauge(connected))
}

// errorCode keeps label cardinality bounded to the session error codes.
func errorCode(err error) string {
	if code, ok := vfs.CodeOf(err); ok {
		return code.String()
	}
	return "unknown"
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
