package metrics

import (
	"fmt"
	"strings"

	"github.com/kilianp07/dockyard/core/factory"
)

// Built-in sink types registered by infra/metrics.
const (
	SinkNop        = "nop"
	SinkPrometheus = "prometheus"
	SinkInflux     = "influx"
)

// Config lists the sinks that receive assignment, release and sweep
// records. An empty list keeps only the scheduler's own collectors.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}

// SetDefaults normalizes sink type names.
func (c *Config) SetDefaults() {
	for i := range c.Sinks {
		c.Sinks[i].Type = strings.ToLower(strings.TrimSpace(c.Sinks[i].Type))
	}
}

// Validate rejects sinks without a type.
func (c Config) Validate() error {
	for i, s := range c.Sinks {
		if strings.TrimSpace(s.Type) == "" {
			return fmt.Errorf("metrics: sinks[%d]: type is required", i)
		}
	}
	return nil
}
