// Lunix gateway reads the sensor network base station and serves the
// latest measurements over HTTP and websockets.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/NotCoffee418/lunix_gateway/pkg/api"
	"github.com/NotCoffee418/lunix_gateway/pkg/config"
	"github.com/NotCoffee418/lunix_gateway/pkg/metrics"
	"github.com/NotCoffee418/lunix_gateway/pkg/pathing"
	"github.com/NotCoffee418/lunix_gateway/pkg/port_reader"
	"github.com/NotCoffee418/lunix_gateway/pkg/protocol"
	"github.com/NotCoffee418/lunix_gateway/pkg/sensors"
)

func main() {
	configPath := flag.String("config", pathing.GetGatewayConfigPath(), "path to the gateway config file")
	flag.Parse()

	// Load config
	cfg, err := config.LoadGatewayConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load gateway config: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("Gateway stopped: %v", err)
	}
}

func run(cfg *config.GatewayConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	store, err := sensors.NewStore(cfg.SensorCount)
	if err != nil {
		return err
	}
	// Runs last so every reader still waiting is released.
	defer store.Close()

	parser := protocol.NewParser(
		protocol.NewSensorDispatcher(store, m),
		protocol.WithMaxFrameLen(cfg.MaxFrameLen),
		protocol.WithCRCCheck(cfg.VerifyCRC),
		protocol.WithMetrics(m),
	)
	reader := port_reader.NewBaseStationReader(cfg.SerialDevice, cfg.Baudrate, parser,
		port_reader.WithMetrics(m),
	)
	server := api.NewServer(store, m, reg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reader.Run(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx, cfg.ListenAddr())
	})

	err = g.Wait()
	log.Println("Shutting down Lunix gateway")
	return err
}
