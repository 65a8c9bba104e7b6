package lookup

import (
	"fmt"
	"io"

	"github.com/NotCoffee418/lunix_gateway/pkg/types"
)

var tableVarNames = [types.NumQuantities]string{
	types.Battery:     "lookupVoltage",
	types.Temperature: "lookupTemperature",
	types.Light:       "lookupLight",
}

// WriteTables dumps the tables for qs as generated Go source, four
// values per line.
func WriteTables(w io.Writer, qs ...types.Quantity) error {
	if _, err := fmt.Fprint(w, "// Code generated by mk_lookup_tables. DO NOT EDIT.\n\n"+
		"// Raw 16-bit measurements converted to milli-units.\n"+
		"package lookuptables\n"); err != nil {
		return err
	}

	for _, q := range qs {
		if !q.Valid() {
			return fmt.Errorf("%w: %d", types.ErrUnknownQuantity, uint8(q))
		}
		if _, err := fmt.Fprintf(w, "\nvar %s = [%d]int32{\n", tableVarNames[q], TableSize); err != nil {
			return err
		}
		t := Table(q)
		for i := 0; i < TableSize; i += 4 {
			if _, err := fmt.Fprintf(w, "\t%d, %d, %d, %d,\n", t[i], t[i+1], t[i+2], t[i+3]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprint(w, "}\n"); err != nil {
			return err
		}
	}
	return nil
}
