// Package store selects and opens a store.Store backend from configuration.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	core "github.com/kilianp07/dockyard/core/store"
	"github.com/kilianp07/dockyard/infra/store/memory"
	"github.com/kilianp07/dockyard/infra/store/sqlstore"
)

// Config selects the persistence backend.
type Config struct {
	// Driver is one of memory, sqlite, mysql or postgres.
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

// SetDefaults fills an empty driver with sqlite on dockyard.db.
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = sqlstore.SQLite
	}
	if c.Driver == sqlstore.SQLite && c.DSN == "" {
		c.DSN = "dockyard.db"
	}
}

// Validate checks the driver name and that SQL drivers have a DSN.
func (c Config) Validate() error {
	switch strings.ToLower(c.Driver) {
	case "memory":
		return nil
	case sqlstore.SQLite, sqlstore.MySQL, sqlstore.Postgres:
		if c.DSN == "" {
			return fmt.Errorf("store: dsn required for driver %s", c.Driver)
		}
		return nil
	}
	return fmt.Errorf("store: unknown driver %q", c.Driver)
}

// Open returns the configured backend.
func Open(ctx context.Context, cfg Config) (core.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.ToLower(cfg.Driver) == "memory" {
		return memory.New(), nil
	}
	return sqlstore.Open(ctx, cfg.Driver, cfg.DSN, sqlstore.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeSeconds) * time.Second,
	})
}
