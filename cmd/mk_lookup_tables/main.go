// Dumps the battery, temperature and light conversion tables, one block per
// quantity and four values per line.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/NotCoffee418/lunix_gateway/pkg/lookup"
	"github.com/NotCoffee418/lunix_gateway/pkg/types"
)

func main() {
	only := flag.String("quantity", "", "dump a single table (batt, temp or light)")
	flag.Parse()

	quantities := types.Quantities()
	if *only != "" {
		q, err := types.ParseQuantity(*only)
		if err != nil {
			log.Fatal(err)
		}
		quantities = []types.Quantity{q}
	}

	w := bufio.NewWriter(os.Stdout)
	if err := lookup.WriteTables(w, quantities...); err != nil {
		log.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		log.Fatal(err)
	}
	fmt.Fprintf(os.Stderr, "Dumped %d tables of %d entries\n", len(quantities), lookup.TableSize)
}
