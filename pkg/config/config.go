package config

import (
	"time"
)

// Config is the on-disk configuration shared by the chat client and the
// development server.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// ClientConfig configures the chat client connection.
type ClientConfig struct {
	URL         string `yaml:"url"`          // Cable endpoint, ws:// or wss://
	Token       string `yaml:"token"`        // Static auth token, optional
	Room        string `yaml:"room"`         // Chat room to join
	Handle      string `yaml:"handle"`       // Display name in the room
	LazyConnect bool   `yaml:"lazy_connect"` // Defer dialing until the first subscribe
}

// ServerConfig configures the development channel server.
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`   // host:port
	PingInterval time.Duration `yaml:"ping_interval"` // Keepalive cadence, default 15s
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Debug  bool   `yaml:"debug"`  // Enable verbose logging
	Level  string `yaml:"level"`  // "info", "error", or "all"
	Colors bool   `yaml:"colors"` // Colorize console output
}

// DefaultConfig returns a configuration suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			URL:    "ws://localhost:28080/cable",
			Room:   "lobby",
			Handle: "guest",
		},
		Server: ServerConfig{
			ListenAddr:   ":28080",
			PingInterval: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "error",
			Colors: true,
		},
	}
}
