package types

import (
	"encoding/json"
	"log"
	"strings"
)

// SensorReading is one formatted measurement as pushed to websocket clients.
type SensorReading struct {
	// Zero-based sensor index (node id - 1)
	Sensor   int      `json:"sensor"`
	Quantity Quantity `json:"quantity"`
	Device   string   `json:"device"`

	// Formatted value without the trailing newline, e.g. "1.223"
	Value string `json:"value"`

	// Unix seconds of the sample as recorded by the gateway
	Timestamp uint32 `json:"timestamp"`
}

// NewSensorReading builds a reading from the text a handle produced.
func NewSensorReading(index int, q Quantity, text string, timestamp uint32) *SensorReading {
	return &SensorReading{
		Sensor:    index,
		Quantity:  q,
		Device:    DeviceName(index, q),
		Value:     strings.TrimSuffix(text, "\n"),
		Timestamp: timestamp,
	}
}

func (r *SensorReading) ToJsonBytes() []byte {
	data, err := json.Marshal(r)
	if err != nil {
		log.Printf("Error marshaling reading: %v", err)
		return nil
	}
	return data
}

// Returns nil when the message is not a valid reading.
func SensorReadingFromJsonBytes(data []byte) *SensorReading {
	var reading SensorReading
	if err := json.Unmarshal(data, &reading); err != nil {
		return nil
	}
	if !reading.Quantity.Valid() {
		return nil
	}
	return &reading
}
