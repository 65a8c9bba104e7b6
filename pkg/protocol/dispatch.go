package protocol

import (
	"encoding/binary"
	"log"
	"strconv"

	"github.com/NotCoffee418/lunix_gateway/pkg/metrics"
	"github.com/NotCoffee418/lunix_gateway/pkg/sensors"
)

// Dispatcher receives every complete frame. The slice is only valid for the
// duration of the call.
type Dispatcher interface {
	Dispatch(frame []byte)
}

// DispatcherFunc adapts a plain function to Dispatcher.
type DispatcherFunc func(frame []byte)

func (f DispatcherFunc) Dispatch(frame []byte) {
	f(frame)
}

// SensorDispatcher updates the sensor store from sensor report frames and
// ignores every other kind of traffic. In future releases check packets
// with AM types 0x03 and 0xFD for extending this.
type SensorDispatcher struct {
	Store   *sensors.Store
	Metrics *metrics.Metrics
}

func NewSensorDispatcher(store *sensors.Store, m *metrics.Metrics) *SensorDispatcher {
	return &SensorDispatcher{Store: store, Metrics: m}
}

func (d *SensorDispatcher) Dispatch(frame []byte) {
	if len(frame) <= SignatureOffset || frame[SignatureOffset] != SensorSignature {
		d.Metrics.FrameDropped(metrics.DropSignature)
		return
	}
	if len(frame)-trailerLen < LightOffset+2 {
		log.Printf("Sensor frame too short (%d bytes), dropping", len(frame))
		d.Metrics.FrameDropped(metrics.DropShort)
		return
	}

	nodeID := binary.LittleEndian.Uint16(frame[NodeOffset:])
	batt := binary.LittleEndian.Uint16(frame[BatteryOffset:])
	temp := binary.LittleEndian.Uint16(frame[TemperatureOffset:])
	light := binary.LittleEndian.Uint16(frame[LightOffset:])

	if nodeID == 0 || int(nodeID) > d.Store.Len() {
		log.Printf("Node id %d is out of bounds [maximum %d sensors]", nodeID, d.Store.Len())
		d.Metrics.FrameDropped(metrics.DropNodeBounds)
		return
	}

	index := int(nodeID) - 1
	if err := d.Store.Update(index, batt, temp, light); err != nil {
		log.Printf("Failed to update sensor %d: %v", index, err)
		return
	}
	d.Metrics.SensorUpdated(strconv.Itoa(index))
}
