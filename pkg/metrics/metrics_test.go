package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddBytes(10)
		m.FrameAccepted()
		m.FrameDropped(DropOverflow)
		m.SensorUpdated("0")
		m.ReadServed("batt", "ok")
		m.HandleOpened()
		m.HandleClosed()
		m.SerialError()
		m.SerialRead(time.Now())
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.AddBytes(7)
	m.AddBytes(3)
	m.FrameAccepted()
	m.FrameDropped(DropCRC)
	m.FrameDropped(DropCRC)
	m.FrameDropped(DropOverflow)
	m.HandleOpened()
	m.HandleOpened()
	m.HandleClosed()
	m.SerialError()
	m.SerialRead(time.Unix(1700000000, 0))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SerialErrors))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastSerialRead))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.BytesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesAccepted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesDropped.WithLabelValues(DropCRC)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesDropped.WithLabelValues(DropOverflow)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpenHandles))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestUnregistered(t *testing.T) {
	m := NewMetrics(nil)
	m.FrameAccepted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesAccepted))
}
