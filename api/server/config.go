package server

import (
	"fmt"
	"time"
)

// Config controls the HTTP listener.
type Config struct {
	Addr         string        `json:"addr"`
	AllowOrigins string        `json:"allow_origins"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	// WSPing is the keepalive interval of websocket clients.
	WSPing time.Duration `json:"ws_ping"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.AllowOrigins == "" {
		c.AllowOrigins = "*"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.WSPing <= 0 {
		c.WSPing = 20 * time.Second
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}
