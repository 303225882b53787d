package dispatch

import (
	"fmt"
	"time"

	"github.com/kilianp07/dockyard/core/factory"
)

// Config defines scheduler settings.
type Config struct {
	// Hold is how long a truck keeps its dock before automatic release.
	Hold time.Duration `json:"hold"`
	// SweepInterval is the period of the automatic assignment sweep.
	SweepInterval time.Duration `json:"sweep_interval"`
	// RecentLimit is the default number of assignment records returned by
	// RecentAssignments.
	RecentLimit int `json:"recent_limit"`
	// Policy selects the truck/dock pairing strategy: random or fifo.
	Policy factory.ModuleConfig `json:"policy"`
	// OpTimeout bounds store work done from timer callbacks.
	OpTimeout time.Duration `json:"op_timeout"`
}

// SetDefaults applies defaults for unset fields.
func (c *Config) SetDefaults() {
	if c.Hold <= 0 {
		c.Hold = 15 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 2 * time.Second
	}
	if c.RecentLimit <= 0 {
		c.RecentLimit = 3
	}
	if c.Policy.Type == "" {
		c.Policy.Type = PolicyRandom
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 10 * time.Second
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.Hold <= 0 {
		return fmt.Errorf("hold must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}
	if c.RecentLimit <= 0 {
		return fmt.Errorf("recent_limit must be positive")
	}
	return nil
}
