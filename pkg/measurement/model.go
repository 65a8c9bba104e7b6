package measurement

import (
	"sync"
	"sync/atomic"

	"github.com/NotCoffee418/lunix_gateway/pkg/metrics"
	"github.com/NotCoffee418/lunix_gateway/pkg/sensors"
	"github.com/NotCoffee418/lunix_gateway/pkg/types"
)

// Size of the cached textual value.
const BufSize = 200

// Handle is the private state of one open reader session on a single
// (sensor, quantity) pair.
type Handle struct {
	sensor   *sensors.Sensor
	quantity types.Quantity
	metrics  *metrics.Metrics

	nonBlocking bool
	closed      atomic.Bool

	// Guards everything below. Never held while sleeping.
	lock sync.Mutex

	// Timestamp of the sample the buffer was formatted from. Also read
	// without the lock by NeedsRefresh.
	bufTimestamp atomic.Uint32
	bufData      [BufSize]byte
	bufLim       int
	pos          int
}
