package config

import (
	"fmt"

	"github.com/kilianp07/dockyard/core/model"
)

// DocksConfig is the minimum number of docks of each type. Provisioning only
// ever adds docks.
type DocksConfig struct {
	Loading   int `json:"loading"`
	Unloading int `json:"unloading"`
	Priority  int `json:"priority"`
}

func (c *DocksConfig) SetDefaults() {
	if c.Loading == 0 {
		c.Loading = 2
	}
	if c.Unloading == 0 {
		c.Unloading = 2
	}
	if c.Priority == 0 {
		c.Priority = 1
	}
}

func (c DocksConfig) Validate() error {
	if c.Loading < 2 || c.Unloading < 2 || c.Priority < 1 {
		return fmt.Errorf("docks: need at least 2 loading, 2 unloading and 1 priority")
	}
	return nil
}

// Counts returns the pool size per dock type.
func (c DocksConfig) Counts() map[model.DockType]int {
	return map[model.DockType]int{
		model.DockLoading:   c.Loading,
		model.DockUnloading: c.Unloading,
		model.DockPriority:  c.Priority,
	}
}
