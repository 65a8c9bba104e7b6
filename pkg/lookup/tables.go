// Package lookup converts raw 16-bit sensor codes into physical values.
// Values are signed milli-units: millivolts, milli-degrees Celsius and
// milli-lux. The three tables are computed once on first use and never
// modified afterwards.
package lookup

import (
	"math"
	"sync"

	"github.com/NotCoffee418/lunix_gateway/pkg/types"
)

const (
	// Returned for a battery code of 0, which has no meaningful voltage.
	BatterySentinel int32 = math.MinInt32

	// Temperatures below absolute zero are meaningless; clamp to this.
	TemperatureFloor int32 = -272150

	// Entries per table, one for every 16-bit raw code
	TableSize = 1 << 16
)

// Thermistor bridge constants. The coefficients are single precision on
// the sensor boards and are widened here the same way.
const (
	bridgeResistor = 10000.0
	adcFullScale   = 1023.0
)

var (
	steinhartA = float64(float32(0.001010024))
	steinhartB = float64(float32(0.000242127))
	steinhartC = float64(float32(0.000000146))
)

var (
	tables     [types.NumQuantities][TableSize]int32
	tablesOnce sync.Once
)

func buildTables() {
	for i := 0; i < TableSize; i++ {
		raw := uint16(i)
		tables[types.Battery][i] = BatteryMilliVolts(raw)
		tables[types.Temperature][i] = TemperatureMilliCelsius(raw)
		tables[types.Light][i] = LightMilliLux(raw)
	}
}

// Convert looks up the milli-unit value of raw for quantity q.
// Unknown quantities map to 0.
func Convert(q types.Quantity, raw uint16) int32 {
	if !q.Valid() {
		return 0
	}
	tablesOnce.Do(buildTables)
	return tables[q][raw]
}

// Table returns a copy of the full table for q.
func Table(q types.Quantity) []int32 {
	if !q.Valid() {
		return nil
	}
	tablesOnce.Do(buildTables)
	out := make([]int32, TableSize)
	copy(out, tables[q][:])
	return out
}

// BatteryMilliVolts computes 1.223V * 1023 / raw.
func BatteryMilliVolts(raw uint16) int32 {
	if raw == 0 {
		return BatterySentinel
	}
	return int32(1223.0 * adcFullScale / float64(raw))
}

// TemperatureMilliCelsius applies the Steinhart-Hart thermistor model.
func TemperatureMilliCelsius(raw uint16) int32 {
	value := float64(raw)
	rth := bridgeResistor * (adcFullScale - value) / value
	lnR := math.Log(rth)
	kelvinInv := steinhartA + steinhartB*lnR + steinhartC*math.Pow(lnR, 3)

	milli := ((1.0 / kelvinInv) - 272.15) * 1000
	if math.IsNaN(milli) || milli < float64(TemperatureFloor) {
		return TemperatureFloor
	}
	if milli > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(milli)
}

// LightMilliLux is a linear scaling of the raw code onto 0..5000 lux.
func LightMilliLux(raw uint16) int32 {
	return int32(float64(raw) * 5000000.0 / 65535)
}
