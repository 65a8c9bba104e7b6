package port_reader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotCoffee418/lunix_gateway/pkg/metrics"
	"github.com/NotCoffee418/lunix_gateway/pkg/protocol"
	"github.com/NotCoffee418/lunix_gateway/pkg/sensors"
	"github.com/NotCoffee418/lunix_gateway/pkg/types"
)

// mockPort hands out ReadData in chunks of at most ChunkSize bytes, then
// blocks until closed, like an idle tty.
type mockPort struct {
	mu        sync.Mutex
	ReadData  []byte
	ChunkSize int
	ReadError error

	closeOnce sync.Once
	closed    chan struct{}
}

func newMockPort(data []byte, chunkSize int) *mockPort {
	return &mockPort{ReadData: data, ChunkSize: chunkSize, closed: make(chan struct{})}
}

func (m *mockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	if m.ReadError != nil {
		m.mu.Unlock()
		return 0, m.ReadError
	}
	if len(m.ReadData) > 0 {
		n := min(len(p), m.ChunkSize, len(m.ReadData))
		copy(p, m.ReadData[:n])
		m.ReadData = m.ReadData[n:]
		m.mu.Unlock()
		return n, nil
	}
	m.mu.Unlock()

	<-m.closed
	return 0, io.EOF
}

func (m *mockPort) Write(p []byte) (int, error) {
	return len(p), nil
}

func (m *mockPort) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockPort) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

func TestRunFeedsParser(t *testing.T) {
	store, err := sensors.NewStore(4)
	require.NoError(t, err)
	m := metrics.NewMetrics(nil)
	parser := protocol.NewParser(protocol.NewSensorDispatcher(store, m), protocol.WithMetrics(m))

	var stream []byte
	stream = append(stream, 0x00, 0x13)
	stream = protocol.AppendSensorFrame(stream, 1, 1023, 512, 100)
	stream = protocol.AppendSensorFrame(stream, 3, 0x7E7D, 1, 2)
	port := newMockPort(stream, 5)

	var gotPort string
	var gotBaud uint
	reader := NewBaseStationReader("/dev/ttyUSB1", 0, parser,
		WithMetrics(m),
		WithOpener(func(name string, baud uint) (io.ReadWriteCloser, error) {
			gotPort, gotBaud = name, baud
			return port, nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reader.Run(ctx) }()

	require.Eventually(t, func() bool {
		s, _ := store.Sensor(2)
		return s.LastUpdate(types.Battery) != 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not stop on cancel")
	}

	assert.Equal(t, "/dev/ttyUSB1", gotPort)
	assert.Equal(t, uint(DefaultBaudrate), gotBaud)
	assert.True(t, port.isClosed())
	assert.NotZero(t, testutil.ToFloat64(m.LastSerialRead))
	assert.Equal(t, float64(len(stream)), testutil.ToFloat64(m.BytesReceived))

	s, _ := store.Sensor(0)
	raw, _ := s.Snapshot(types.Battery)
	assert.Equal(t, uint16(1023), raw)
	s, _ = store.Sensor(2)
	raw, _ = s.Snapshot(types.Battery)
	assert.Equal(t, uint16(0x7E7D), raw)
}

func TestRunOpenFailure(t *testing.T) {
	openErr := errors.New("no such file or directory")
	reader := NewBaseStationReader("/dev/missing", 9600, io.Discard,
		WithOpener(func(string, uint) (io.ReadWriteCloser, error) {
			return nil, openErr
		}),
	)

	err := reader.Run(context.Background())
	assert.ErrorIs(t, err, openErr)
}

func TestRunGivesUpAfterConsecutiveErrors(t *testing.T) {
	readErr := errors.New("device reports readiness to read but returned no data")
	opened := 0
	m := metrics.NewMetrics(nil)
	reader := NewBaseStationReader("/dev/ttyUSB0", 9600, io.Discard,
		WithMetrics(m),
		WithErrorTolerance(3, time.Millisecond),
		WithOpener(func(string, uint) (io.ReadWriteCloser, error) {
			opened++
			p := newMockPort(nil, 1)
			p.ReadError = readErr
			return p, nil
		}),
	)

	err := reader.Run(context.Background())
	assert.ErrorIs(t, err, ErrTooManyErrors)
	assert.ErrorIs(t, err, readErr)
	assert.Equal(t, 4, opened)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SerialErrors))
}

func TestRunRecoversAfterReopen(t *testing.T) {
	var sink bytes.Buffer
	var mu sync.Mutex
	ports := []*mockPort{
		newMockPort([]byte("ab"), 8),
		newMockPort([]byte("cd"), 8),
	}
	calls := 0

	reader := NewBaseStationReader("/dev/ttyUSB0", 9600, writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return sink.Write(p)
	}),
		WithErrorTolerance(5, time.Millisecond),
		WithOpener(func(string, uint) (io.ReadWriteCloser, error) {
			p := ports[min(calls, len(ports)-1)]
			calls++
			return p, nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- reader.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return sink.Len() == 2
	}, time.Second, time.Millisecond)

	// An unplugged adapter surfaces as EOF on the old port.
	ports[0].Close()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return sink.String() == "abcd"
	}, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestRunStopsWhenCancelledDuringReopen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := newMockPort(nil, 1)
	first.ReadError = errors.New("line glitch")
	var second *mockPort
	calls := 0

	reader := NewBaseStationReader("/dev/ttyUSB0", 9600, io.Discard,
		WithErrorTolerance(5, time.Millisecond),
		WithOpener(func(string, uint) (io.ReadWriteCloser, error) {
			calls++
			if calls == 1 {
				return first, nil
			}
			// The stop signal arrives while the port is being reopened.
			cancel()
			second = newMockPort(nil, 1)
			return second, nil
		}),
	)

	done := make(chan error, 1)
	go func() { done <- reader.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reader still running after cancel during reopen")
	}
	assert.Equal(t, 2, calls)
	require.NotNil(t, second)
	assert.True(t, second.isClosed())
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) {
	return f(p)
}
