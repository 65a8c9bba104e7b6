package sensors

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/NotCoffee418/lunix_gateway/pkg/types"
)

// Marks a measurement slot as initialised.
const MsrMagic uint32 = 0xF00DF00D

// msrData holds the most recent sample of one quantity.
type msrData struct {
	magic uint32
	value uint16

	// Read without the sensor lock by advisory freshness checks.
	lastUpdate atomic.Uint32
}

// Sensor is the record of one network node.
type Sensor struct {
	index int
	clock func() time.Time

	// Guards the msr slots. Held only for copies, never across a wait.
	lock sync.Mutex
	msr  [types.NumQuantities]msrData

	wq waitQueue
}

// Store is the fixed-capacity table of all sensor records.
type Store struct {
	sensors []Sensor
	closed  atomic.Bool
}
