// Package config provides YAML-based server configuration loading for
// the netpong service.
package config

import "time"

// ServerConfig holds everything the serve command needs. Gameplay
// constants (arena size, speeds, win score) are compile-time constants
// in the game package and deliberately absent here.
type ServerConfig struct {
	// Address is the host:port the HTTP/WebSocket listener binds to.
	Address string `yaml:"address"`

	// AllowAnyOrigin disables the WebSocket origin check. Useful for
	// local development; keep it off when serving real browsers.
	AllowAnyOrigin bool `yaml:"allow_any_origin"`

	// IdleTimeout is how long a connection may stay silent (no frames,
	// no pong replies) before the server closes it.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}
