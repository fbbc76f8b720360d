package metrics

import "time"

// SessionMetrics observes the operations of a catalog session.
//
// Implementations must be safe for concurrent use: a mount shares one
// instance across every request it serves.
type SessionMetrics interface {
	// ObserveOperation records one session operation (stat, opendir,
	// readdir, mkdir, ...) with its latency and outcome. err is nil on
	// success.
	ObserveOperation(op string, duration time.Duration, err error)

	// RecordBytesWritten counts payload bytes written through descriptors.
	RecordBytesWritten(n int)

	// SetOpenDescriptors reports the number of currently open descriptors.
	SetOpenDescriptors(n int)

	// SetStreamOpen reports whether the session's directory stream is open.
	SetStreamOpen(open bool)

	// SetConnected reports whether the session holds a live connection.
	SetConnected(connected bool)
}

// NewNoopSessionMetrics returns a SessionMetrics that records nothing.
func NewNoopSessionMetrics() SessionMetrics {
	return noopSessionMetrics{}
}

type noopSessionMetrics struct{}

func (noopSessionMetrics) ObserveOperation(op string, duration time.Duration, err error) {}
func (noopSessionMetrics) RecordBytesWritten(n int)                                      {}
func (noopSessionMetrics) SetOpenDescriptors(n int)                                      {}
func (noopSessionMetrics) SetStreamOpen(open bool)                                       {}
func (noopSessionMetrics) SetConnected(connected bool)                                   {}
