package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/dockyard/core/model"
)

type DocksDef struct {
	Loading   int `yaml:"loading"`
	Unloading int `yaml:"unloading"`
	Priority  int `yaml:"priority"`
}

func (d DocksDef) Counts() map[model.DockType]int {
	return map[model.DockType]int{
		model.DockLoading:   d.Loading,
		model.DockUnloading: d.Unloading,
		model.DockPriority:  d.Priority,
	}
}

// Step is one operation. Appointments are addressed through their truck: the
// most recent booking of Truck is used.
type Step struct {
	Op     string `yaml:"op"`
	Truck  string `yaml:"truck,omitempty"`
	Type   string `yaml:"type,omitempty"`
	Dock   string `yaml:"dock,omitempty"`
	Status string `yaml:"status,omitempty"`
	// Expect is the error kind the step must fail with: not_found,
	// unavailable, invalid_transition or invalid_request.
	Expect string `yaml:"expect,omitempty"`
}

type Expected struct {
	Assignments int                                `yaml:"assignments"`
	Queued      int                                `yaml:"queued"`
	Occupied    map[string]string                  `yaml:"occupied,omitempty"`
	Statuses    map[string]model.AppointmentStatus `yaml:"statuses,omitempty"`
}

type Scenario struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Docks       DocksDef `yaml:"docks"`
	Steps       []Step   `yaml:"steps"`
	Expected    Expected `yaml:"expected"`
}

var ops = map[string]bool{
	"book": true, "arrive": true, "assign": true, "sweep": true,
	"status": true, "force_complete": true, "depart": true,
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	for i, st := range sc.Steps {
		if !ops[st.Op] {
			return nil, fmt.Errorf("%s: step %d: unknown op %q", path, i, st.Op)
		}
	}
	return &sc, nil
}
