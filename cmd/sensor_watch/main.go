// Sensor watch subscribes to one sensor quantity on a running gateway and
// prints every fresh reading.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/NotCoffee418/lunix_gateway/pkg/config"
	"github.com/NotCoffee418/lunix_gateway/pkg/listener"
	"github.com/NotCoffee418/lunix_gateway/pkg/pathing"
	"github.com/NotCoffee418/lunix_gateway/pkg/types"
)

func main() {
	configPath := flag.String("config", pathing.GetWatchConfigPath(), "path to the watcher config file")
	host := flag.String("host", "", "gateway host:port, overrides the config")
	sensor := flag.Int("sensor", -1, "zero-based sensor index, overrides the config")
	quantity := flag.String("quantity", "", "batt, temp or light, overrides the config")
	flag.Parse()

	cfg, err := config.LoadWatchConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load watch config: %v", err)
	}
	if *host != "" {
		cfg.GatewayHost = *host
	}
	if *sensor >= 0 {
		cfg.Sensor = *sensor
	}
	if *quantity != "" {
		cfg.Quantity = *quantity
	}
	q, err := types.ParseQuantity(cfg.Quantity)
	if err != nil {
		log.Fatalf("Invalid quantity: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = listener.StartListener(ctx, cfg.GatewayHost, cfg.Sensor, q, handleReading,
		listener.WithTLS(cfg.TLSEnabled),
	)
	if err != nil {
		log.Fatalf("Listener stopped: %v", err)
	}
}

// Print each reading as a JSON line
func handleReading(reading *types.SensorReading) {
	fmt.Println(string(reading.ToJsonBytes()))
}
