// Package measurement implements reader handles: a per-session cache of the
// formatted value of one sensor quantity that is refreshed only when the
// sensor reports a newer sample.
package measurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/NotCoffee418/lunix_gateway/pkg/lookup"
	"github.com/NotCoffee418/lunix_gateway/pkg/metrics"
	"github.com/NotCoffee418/lunix_gateway/pkg/sensors"
	"github.com/NotCoffee418/lunix_gateway/pkg/types"
)

// Number of minor numbers reserved per sensor. Only the first
// types.NumQuantities are in use.
const MinorsPerSensor = 8

var (
	ErrNoDevice    = fmt.Errorf("no such device")
	ErrWouldBlock  = errors.New("no fresh data, operation would block")
	ErrInterrupted = errors.New("read interrupted")
	ErrClosed      = errors.New("handle closed")
)

type Option func(*Handle)

// WithNonBlocking makes Read fail with ErrWouldBlock instead of sleeping.
func WithNonBlocking() Option {
	return func(h *Handle) {
		h.nonBlocking = true
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handle) {
		h.metrics = m
	}
}

// Minor returns the minor number addressing quantity q of the sensor at index.
func Minor(index int, q types.Quantity) int {
	return index*MinorsPerSensor + int(q)
}

// SplitMinor is the inverse of Minor.
func SplitMinor(minor int) (int, types.Quantity) {
	q := minor % MinorsPerSensor
	return (minor - q) / MinorsPerSensor, types.Quantity(q)
}

// Open associates a new handle with quantity q of the sensor at index.
func Open(store *sensors.Store, index int, q types.Quantity, opts ...Option) (*Handle, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, q)
	}
	sensor, err := store.Sensor(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoDevice, err)
	}

	h := &Handle{
		sensor:   sensor,
		quantity: q,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.metrics.HandleOpened()
	return h, nil
}

// OpenMinor opens the handle addressed by a minor number.
func OpenMinor(store *sensors.Store, minor int, opts ...Option) (*Handle, error) {
	if minor < 0 {
		return nil, fmt.Errorf("%w: minor %d", ErrNoDevice, minor)
	}
	index, q := SplitMinor(minor)
	return Open(store, index, q, opts...)
}

func (h *Handle) Quantity() types.Quantity {
	return h.quantity
}

func (h *Handle) SensorIndex() int {
	return h.sensor.Index()
}

// LastObserved is the timestamp of the sample currently cached.
func (h *Handle) LastObserved() uint32 {
	return h.bufTimestamp.Load()
}

// Text returns the cached formatted value.
func (h *Handle) Text() string {
	h.lock.Lock()
	defer h.lock.Unlock()
	return string(h.bufData[:h.bufLim])
}

// NeedsRefresh is a quick unlocked check of whether the sensor holds a
// sample newer than the cached one.
func (h *Handle) NeedsRefresh() bool {
	return h.bufTimestamp.Load() != h.sensor.LastUpdate(h.quantity)
}

// Refresh re-formats the cached value from the sensor. It reports false
// when there was nothing new, which is expected when a concurrent reader of
// this handle got there first.
func (h *Handle) Refresh() (bool, error) {
	if h.closed.Load() {
		return false, ErrClosed
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.refreshLocked(), nil
}

// Must be called with h.lock held.
func (h *Handle) refreshLocked() bool {
	if !h.NeedsRefresh() {
		return false
	}

	// Grab the raw data quickly; the sensor lock covers only the copy.
	raw, ts := h.sensor.Snapshot(h.quantity)
	if ts == h.bufTimestamp.Load() {
		return false
	}

	// Now take our time to convert and format, holding only our own lock.
	text := lookup.AppendMilli(h.bufData[:0], lookup.Convert(h.quantity, raw))
	h.bufLim = len(text)
	h.pos = 0
	h.bufTimestamp.Store(ts)
	return true
}

func (h *Handle) wakeCond() bool {
	return h.closed.Load() || h.NeedsRefresh()
}

// Read copies the cached value into p. A read cycle begins at position 0:
// the handle first waits for a sample newer than the one last delivered
// and refreshes from it. A short p continues the same cycle on the next
// call; once the whole value has been delivered the position rewinds so
// the next Read waits for fresh data again.
//
// Cancelling ctx abandons the wait with an error wrapping ErrInterrupted.
// Non-blocking handles fail with ErrWouldBlock instead of waiting.
func (h *Handle) Read(ctx context.Context, p []byte) (int, error) {
	if h.closed.Load() {
		return 0, ErrClosed
	}
	// An empty read must not consume a fresh sample.
	if len(p) == 0 {
		return 0, nil
	}

	h.lock.Lock()
	if h.pos == 0 {
		for !h.refreshLocked() {
			h.lock.Unlock()

			if h.nonBlocking {
				h.metrics.ReadServed(h.quantity.String(), "would_block")
				return 0, ErrWouldBlock
			}
			if err := h.sensor.Wait(ctx, h.wakeCond); err != nil {
				if errors.Is(err, sensors.ErrStoreClosed) {
					return 0, err
				}
				h.metrics.ReadServed(h.quantity.String(), "interrupted")
				return 0, fmt.Errorf("%w: %w", ErrInterrupted, err)
			}
			if h.closed.Load() {
				return 0, ErrClosed
			}

			h.lock.Lock()
		}
	}

	n := copy(p, h.bufData[h.pos:h.bufLim])
	h.pos += n
	if h.pos >= h.bufLim {
		h.pos = 0
	}
	h.lock.Unlock()

	h.metrics.ReadServed(h.quantity.String(), "ok")
	return n, nil
}

// ReadValue performs one complete read cycle and returns the text.
func (h *Handle) ReadValue(ctx context.Context) (string, error) {
	buf := make([]byte, BufSize)
	n, err := h.Read(ctx, buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// Close releases the handle. Other handles, including ones blocked on the
// same sensor, are not affected. A Read blocked on this handle keeps waiting
// until its context is cancelled or the sensor reports.
func (h *Handle) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	h.metrics.HandleClosed()
	return nil
}
