package config

import (
	_ "embed"
	"time"
)

//go:embed defaults/netpong.yaml
var defaultServerYAML []byte

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:         ":8080",
		AllowAnyOrigin:  false,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
	}
}
