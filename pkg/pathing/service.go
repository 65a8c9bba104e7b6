package pathing

import (
	"os"
	"path/filepath"
)

// Environment variables overriding the config file location of each binary.
const (
	ConfigPathEnv      = "LUNIX_CONFIG"
	WatchConfigPathEnv = "LUNIX_WATCH_CONFIG"
)

func GetConfigDir() string {
	return "/etc/lunix_gateway"
}

func GetGatewayConfigPath() string {
	return resolve(ConfigPathEnv, filepath.Join(GetConfigDir(), "lunix_gateway.toml"))
}

func GetWatchConfigPath() string {
	return resolve(WatchConfigPathEnv, filepath.Join(GetConfigDir(), "sensor_watch.toml"))
}

// EnsureDir creates dir and its parents when missing.
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

func resolve(env, defaultPath string) string {
	if p := os.Getenv(env); p != "" {
		return p
	}
	return defaultPath
}
