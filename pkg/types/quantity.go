package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Quantity selects one of the three measurements every sensor reports.
type Quantity uint8

const (
	Battery     Quantity = 0
	Temperature Quantity = 1
	Light       Quantity = 2

	// Number of quantities tracked per sensor
	NumQuantities = 3
)

var ErrUnknownQuantity = fmt.Errorf("unknown quantity")

var quantityNames = [NumQuantities]string{"batt", "temp", "light"}

// Quantities lists every quantity in minor-number order.
func Quantities() []Quantity {
	return []Quantity{Battery, Temperature, Light}
}

func (q Quantity) Valid() bool {
	return q < NumQuantities
}

func (q Quantity) String() string {
	if !q.Valid() {
		return fmt.Sprintf("quantity(%d)", uint8(q))
	}
	return quantityNames[q]
}

// ParseQuantity accepts either the short name ("batt", "temp", "light")
// or the numeric selector ("0", "1", "2").
func ParseQuantity(s string) (Quantity, error) {
	for i, name := range quantityNames {
		if s == name {
			return Quantity(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < NumQuantities {
		return Quantity(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownQuantity, s)
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if !q.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownQuantity, uint8(q))
	}
	return json.Marshal(q.String())
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseQuantity(s)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// DeviceName returns the classic device node name, e.g. "sensor0-batt".
func DeviceName(index int, q Quantity) string {
	return fmt.Sprintf("sensor%d-%s", index, q)
}
