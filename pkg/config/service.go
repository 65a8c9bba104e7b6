package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/NotCoffee418/lunix_gateway/pkg/pathing"
	"github.com/NotCoffee418/lunix_gateway/pkg/port_reader"
	"github.com/NotCoffee418/lunix_gateway/pkg/protocol"
	"github.com/NotCoffee418/lunix_gateway/pkg/sensors"
	"github.com/NotCoffee418/lunix_gateway/pkg/types"
)

var ErrInvalidConfig = fmt.Errorf("invalid config")

func DefaultGatewayConfig() *GatewayConfig {
	return &GatewayConfig{
		SerialDevice:  "/dev/ttyUSB1",
		Baudrate:      port_reader.DefaultBaudrate,
		SensorCount:   sensors.DefaultSensorCount,
		MaxFrameLen:   protocol.DefaultMaxFrameLen,
		VerifyCRC:     false,
		ListenAddress: "0.0.0.0",
		ListenPort:    9040,
	}
}

func DefaultWatchConfig() *WatchConfig {
	return &WatchConfig{
		GatewayHost: "localhost:9040",
		TLSEnabled:  false,
		Sensor:      0,
		Quantity:    types.Temperature.String(),
	}
}

// LoadGatewayConfig decodes the gateway config at path, writing the
// defaults there first if the file does not exist yet.
func LoadGatewayConfig(path string) (*GatewayConfig, error) {
	cfg := DefaultGatewayConfig()
	if err := loadOrCreate(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadWatchConfig(path string) (*WatchConfig, error) {
	cfg := DefaultWatchConfig()
	if err := loadOrCreate(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadOrCreate(path string, cfg any) error {
	// Create default if not exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := pathing.EnsureDir(filepath.Dir(path)); err != nil {
			return err
		}
		cfgFile, err := os.Create(path)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		if err := toml.NewEncoder(cfgFile).Encode(cfg); err != nil {
			return fmt.Errorf("failed to write default config %s: %w", path, err)
		}
		return nil
	}

	// Load existing config. Keys missing from the file keep their defaults.
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *GatewayConfig) ListenAddr() string {
	return net.JoinHostPort(c.ListenAddress, strconv.Itoa(c.ListenPort))
}

func (c *GatewayConfig) Validate() error {
	var errs []error
	if c.SerialDevice == "" {
		errs = append(errs, errors.New("serial_device is empty"))
	}
	if c.Baudrate == 0 {
		errs = append(errs, errors.New("baudrate must be positive"))
	}
	if c.SensorCount <= 0 || c.SensorCount > sensors.MaxSensors {
		errs = append(errs, fmt.Errorf("sensor_count %d out of 1..%d", c.SensorCount, sensors.MaxSensors))
	}
	if c.MaxFrameLen < protocol.SensorFrameLen {
		errs = append(errs, fmt.Errorf("max_frame_len %d cannot hold a sensor frame (%d bytes)", c.MaxFrameLen, protocol.SensorFrameLen))
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("listen_port %d out of range", c.ListenPort))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c *WatchConfig) Validate() error {
	var errs []error
	if c.GatewayHost == "" {
		errs = append(errs, errors.New("gateway_host is empty"))
	}
	if c.Sensor < 0 {
		errs = append(errs, fmt.Errorf("sensor %d is negative", c.Sensor))
	}
	if _, err := types.ParseQuantity(c.Quantity); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
