// Package sensors holds the latest raw measurements of every sensor node
// and lets readers sleep until a node reports again.
package sensors

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/NotCoffee418/lunix_gateway/pkg/types"
)

// Default number of sensors supported by the gateway.
const DefaultSensorCount = 16

// Upper bound so that every (sensor, quantity) minor number fits 16 bits.
const MaxSensors = (1 << 13) - 1

var (
	ErrInvalidSensorCount = fmt.Errorf("invalid sensor count")
	ErrNoSuchSensor       = fmt.Errorf("no such sensor")
	ErrStoreClosed        = errors.New("sensor store closed")
)

type StoreOption func(*storeOptions)

type storeOptions struct {
	clock func() time.Time
}

// WithClock replaces the time source used for update timestamps.
func WithClock(clock func() time.Time) StoreOption {
	return func(o *storeOptions) {
		o.clock = clock
	}
}

// NewStore allocates and initialises count sensor records.
func NewStore(count int, opts ...StoreOption) (*Store, error) {
	if count <= 0 || count > MaxSensors {
		return nil, fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidSensorCount, count, MaxSensors)
	}

	o := storeOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{sensors: make([]Sensor, count)}
	for i := range s.sensors {
		s.sensors[i].init(i, o.clock)
	}
	log.Printf("Initialized sensor store [max %d sensors]", count)
	return s, nil
}

func (s *Sensor) init(index int, clock func() time.Time) {
	s.index = index
	s.clock = clock
	for q := range s.msr {
		s.msr[q].magic = MsrMagic
	}
}

// Len returns the configured number of sensors.
func (s *Store) Len() int {
	return len(s.sensors)
}

// Sensor returns the record at the zero-based index.
func (s *Store) Sensor(index int) (*Sensor, error) {
	if index < 0 || index >= len(s.sensors) {
		return nil, fmt.Errorf("%w: index %d out of [0, %d)", ErrNoSuchSensor, index, len(s.sensors))
	}
	return &s.sensors[index], nil
}

// Update records a new sample for the sensor at index.
func (s *Store) Update(index int, batt, temp, light uint16) error {
	sensor, err := s.Sensor(index)
	if err != nil {
		return err
	}
	sensor.Update(batt, temp, light)
	return nil
}

// Close tears down every record. Sleeping readers are released and
// later waits fail with ErrStoreClosed.
func (s *Store) Close() {
	if s.closed.Swap(true) {
		return
	}
	for i := len(s.sensors) - 1; i >= 0; i-- {
		s.sensors[i].wq.shutdown()
	}
	log.Println("Sensor store closed")
}

// Index returns the zero-based position of the sensor in its store.
func (s *Sensor) Index() int {
	return s.index
}

// Update stores all three raw values under one timestamp and wakes every
// reader waiting on this sensor. Safe to call from the ingestion path: the
// lock is only held for the copy.
func (s *Sensor) Update(batt, temp, light uint16) {
	now := uint32(s.clock().Unix())

	s.lock.Lock()
	// Timestamps never go backwards, even if the wall clock does.
	if prev := s.msr[types.Battery].lastUpdate.Load(); now < prev {
		now = prev
	}
	s.msr[types.Battery].value = batt
	s.msr[types.Temperature].value = temp
	s.msr[types.Light].value = light
	for q := range s.msr {
		s.msr[q].magic = MsrMagic
		s.msr[q].lastUpdate.Store(now)
	}
	s.lock.Unlock()

	s.wq.wakeAll()
}

// Snapshot copies out the raw value and timestamp of one quantity.
func (s *Sensor) Snapshot(q types.Quantity) (uint16, uint32) {
	if !q.Valid() {
		return 0, 0
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.msr[q].value, s.msr[q].lastUpdate.Load()
}

// LastUpdate is an unlocked read of a quantity's timestamp. Zero means the
// sensor has never reported.
func (s *Sensor) LastUpdate(q types.Quantity) uint32 {
	if !q.Valid() {
		return 0
	}
	return s.msr[q].lastUpdate.Load()
}

// Magic returns the validity marker of a measurement slot.
func (s *Sensor) Magic(q types.Quantity) uint32 {
	if !q.Valid() {
		return 0
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.msr[q].magic
}

// Wait sleeps until cond reports true. cond is evaluated without any lock
// held and again after every wake, since a wake only means that this sensor
// was updated, not that the caller's condition holds.
func (s *Sensor) Wait(ctx context.Context, cond func() bool) error {
	for {
		ch, closed := s.wq.channel()
		if cond() {
			return nil
		}
		if closed {
			return ErrStoreClosed
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
