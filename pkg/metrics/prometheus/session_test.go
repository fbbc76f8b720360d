package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/marmos91/catalogfs/pkg/metrics"
	"github.com/marmos91/catalogfs/pkg/vfs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionMetrics(t *testing.T) {
	metrics.InitRegistry()
	m := NewSessionMetrics()
	sm, ok := m.(*sessionMetrics)
	require.True(t, ok, "expected Prometheus implementation once registry is initialized")

	m.ObserveOperation("stat", time.Millisecond, nil)
	m.ObserveOperation("stat", time.Millisecond, &vfs.Error{Code: vfs.NotFound, Op: "stat"})
	m.ObserveOperation("readdir", time.Millisecond, vfs.ErrStreamExhausted)
	m.ObserveOperation("open", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(sm.operationsTotal.WithLabelValues("stat", "success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.operationsTotal.WithLabelValues("stat", "error", "not found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.operationsTotal.WithLabelValues("readdir", "end_of_stream", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.operationsTotal.WithLabelValues("open", "error", "unknown")))

	m.RecordBytesWritten(10)
	m.RecordBytesWritten(-1)
	assert.Equal(t, 10.0, testutil.ToFloat64(sm.bytesWritten))

	m.SetOpenDescriptors(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(sm.openDescriptors))

	m.SetStreamOpen(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(sm.streamOpen))
	m.SetConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(sm.connected))
}
