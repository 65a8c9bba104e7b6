// Package metrics exposes gateway counters to Prometheus.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons used as the "reason" label of FramesDropped.
const (
	DropOverflow   = "overflow"
	DropBadEnd     = "bad_end"
	DropCRC        = "crc"
	DropSignature  = "signature"
	DropShort      = "short"
	DropNodeBounds = "node_bounds"
)

type Metrics struct {
	BytesReceived  prometheus.Counter
	FramesAccepted prometheus.Counter
	FramesDropped  *prometheus.CounterVec
	SensorUpdates  *prometheus.CounterVec
	ReadsServed    *prometheus.CounterVec
	OpenHandles    prometheus.Gauge
	SerialErrors   prometheus.Counter
	LastSerialRead prometheus.Gauge
}

// NewMetrics creates the gateway metrics and registers them with reg.
// reg may be nil to create unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lunix",
			Subsystem: "ingest",
			Name:      "bytes_received_total",
			Help:      "Total number of raw bytes fed to the frame parser",
		}),
		FramesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lunix",
			Subsystem: "ingest",
			Name:      "frames_accepted_total",
			Help:      "Total number of complete frames handed to the dispatcher",
		}),
		FramesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lunix",
				Subsystem: "ingest",
				Name:      "frames_dropped_total",
				Help:      "Total number of frames discarded, by reason",
			},
			[]string{"reason"},
		),
		SensorUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lunix",
				Subsystem: "sensors",
				Name:      "updates_total",
				Help:      "Total number of measurement updates per sensor",
			},
			[]string{"sensor"},
		),
		ReadsServed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lunix",
				Subsystem: "handles",
				Name:      "reads_total",
				Help:      "Total number of handle reads, by result",
			},
			[]string{"quantity", "result"},
		),
		OpenHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lunix",
			Subsystem: "handles",
			Name:      "open",
			Help:      "Number of currently open measurement handles",
		}),
		SerialErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lunix",
			Subsystem: "ingest",
			Name:      "serial_errors_total",
			Help:      "Total number of failed reads or reopens of the base station port",
		}),
		LastSerialRead: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lunix",
			Subsystem: "ingest",
			Name:      "last_read_timestamp_seconds",
			Help:      "Unix time of the most recent successful read from the base station",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SerialErrors,
			m.LastSerialRead,
			m.BytesReceived,
			m.FramesAccepted,
			m.FramesDropped,
			m.SensorUpdates,
			m.ReadsServed,
			m.OpenHandles,
		)
	}
	return m
}

func (m *Metrics) AddBytes(n int) {
	if m == nil {
		return
	}
	m.BytesReceived.Add(float64(n))
}

func (m *Metrics) FrameAccepted() {
	if m == nil {
		return
	}
	m.FramesAccepted.Inc()
}

func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) SensorUpdated(sensor string) {
	if m == nil {
		return
	}
	m.SensorUpdates.WithLabelValues(sensor).Inc()
}

func (m *Metrics) ReadServed(quantity, result string) {
	if m == nil {
		return
	}
	m.ReadsServed.WithLabelValues(quantity, result).Inc()
}

func (m *Metrics) HandleOpened() {
	if m == nil {
		return
	}
	m.OpenHandles.Inc()
}

func (m *Metrics) HandleClosed() {
	if m == nil {
		return
	}
	m.OpenHandles.Dec()
}

func (m *Metrics) SerialError() {
	if m == nil {
		return
	}
	m.SerialErrors.Inc()
}

func (m *Metrics) SerialRead(at time.Time) {
	if m == nil {
		return
	}
	m.LastSerialRead.Set(float64(at.Unix()))
}
