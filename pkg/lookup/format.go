package lookup

import (
	"strconv"

	"github.com/NotCoffee418/lunix_gateway/pkg/types"
)

// FormatMilli renders a milli-unit value as "<int>.<frac>\n" with
// exactly three fractional digits.
func FormatMilli(v int32) string {
	return string(AppendMilli(nil, v))
}

// AppendMilli is the allocation-free form of FormatMilli.
func AppendMilli(dst []byte, v int32) []byte {
	if v == BatterySentinel {
		return append(dst, "-0.000\n"...)
	}

	// Widen first so the magnitude of negative values cannot overflow.
	m := int64(v)
	if m < 0 {
		dst = append(dst, '-')
		m = -m
	}
	dst = strconv.AppendInt(dst, m/1000, 10)
	dst = append(dst, '.')
	frac := m % 1000
	if frac < 100 {
		dst = append(dst, '0')
	}
	if frac < 10 {
		dst = append(dst, '0')
	}
	dst = strconv.AppendInt(dst, frac, 10)
	return append(dst, '\n')
}

// Format converts raw through the table for q and formats the result.
func Format(q types.Quantity, raw uint16) string {
	return FormatMilli(Convert(q, raw))
}
