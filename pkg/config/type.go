package config

type GatewayConfig struct {
	SerialDevice  string `toml:"serial_device"`
	Baudrate      uint   `toml:"baudrate"`
	SensorCount   int    `toml:"sensor_count"`
	MaxFrameLen   int    `toml:"max_frame_len"`
	VerifyCRC     bool   `toml:"verify_crc"`
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
}

type WatchConfig struct {
	GatewayHost string `toml:"gateway_host"`
	TLSEnabled  bool   `toml:"tls_enabled"`
	// Zero-based sensor index and quantity name (batt, temp or light)
	Sensor   int    `toml:"sensor"`
	Quantity string `toml:"quantity"`
}
