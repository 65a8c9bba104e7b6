package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGatewayConfigWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "lunix_gateway.toml")

	cfg, err := LoadGatewayConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultGatewayConfig(), cfg)
	assert.FileExists(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `serial_device = "/dev/ttyUSB1"`)
	assert.Contains(t, string(data), "sensor_count = 16")

	again, err := LoadGatewayConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadGatewayConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gw.toml")
	require.NoError(t, os.WriteFile(path, []byte("serial_device = \"/dev/ttyS3\"\nverify_crc = true\nlisten_port = 8080\n"), 0644))

	cfg, err := LoadGatewayConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS3", cfg.SerialDevice)
	assert.True(t, cfg.VerifyCRC)
	assert.Equal(t, "0.0.0.0:8080", cfg.ListenAddr())
	assert.Equal(t, 16, cfg.SensorCount)
	assert.Equal(t, uint(9600), cfg.Baudrate)
}

func TestLoadGatewayConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gw.toml")
	require.NoError(t, os.WriteFile(path, []byte("sensor_count = \"many\"\n"), 0644))

	_, err := LoadGatewayConfig(path)
	assert.Error(t, err)
}

func TestGatewayConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *GatewayConfig)
	}{
		{"empty device", func(c *GatewayConfig) { c.SerialDevice = "" }},
		{"zero baudrate", func(c *GatewayConfig) { c.Baudrate = 0 }},
		{"no sensors", func(c *GatewayConfig) { c.SensorCount = 0 }},
		{"too many sensors", func(c *GatewayConfig) { c.SensorCount = 8192 }},
		{"tiny frames", func(c *GatewayConfig) { c.MaxFrameLen = 20 }},
		{"bad port", func(c *GatewayConfig) { c.ListenPort = 70000 }},
	}

	assert.NoError(t, DefaultGatewayConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGatewayConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadWatchConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.toml")

	cfg, err := LoadWatchConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9040", cfg.GatewayHost)
	assert.Equal(t, "temp", cfg.Quantity)

	require.NoError(t, os.WriteFile(path, []byte("quantity = \"humidity\"\n"), 0644))
	_, err = LoadWatchConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
