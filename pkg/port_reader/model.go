package port_reader

import (
	"io"
	"sync"
	"time"

	"github.com/NotCoffee418/lunix_gateway/pkg/metrics"
)

// Opener opens the base station port. Replaced by tests with a mock port.
type Opener func(port string, baudrate uint) (io.ReadWriteCloser, error)

type BaseStationReader struct {
	port     string
	baudrate uint
	open     Opener
	sink     io.Writer
	metrics  *metrics.Metrics

	maxErrors  int
	retryDelay time.Duration
	chunkSize  int

	portMutex  sync.Mutex
	serialPort io.ReadWriteCloser
}
