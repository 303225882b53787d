package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DockType classifies what a dock can serve.
type DockType string

const (
	DockLoading   DockType = "loading"
	DockUnloading DockType = "unloading"
	DockPriority  DockType = "priority"
)

// DockTypes lists all dock types in provisioning order.
var DockTypes = []DockType{DockLoading, DockUnloading, DockPriority}

// ParseDockType validates s as a DockType.
func ParseDockType(s string) (DockType, error) {
	switch t := DockType(s); t {
	case DockLoading, DockUnloading, DockPriority:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown dock type %q", ErrInvalidRequest, s)
}

// Serves reports whether a dock of type t can take an appointment of type a.
// Priority docks accept any appointment.
func (t DockType) Serves(a AppointmentType) bool {
	if t == DockPriority {
		return true
	}
	return string(t) == string(a)
}

// DockStatus is the occupancy state of a dock.
type DockStatus string

const (
	DockAvailable DockStatus = "available"
	DockOccupied  DockStatus = "occupied"
)

// Dock is a physical bay. CurrentTruckID and AssignedAt are set iff the dock
// is occupied.
type Dock struct {
	ID             string     `json:"id"`
	Type           DockType   `json:"type"`
	Status         DockStatus `json:"status"`
	CurrentTruckID string     `json:"currentTruckId,omitempty"`
	AssignedAt     *time.Time `json:"assignedAt,omitempty"`
}

// Occupied reports whether the dock holds a truck.
func (d Dock) Occupied() bool { return d.Status == DockOccupied }

// Consistent checks the occupancy invariant.
func (d Dock) Consistent() bool {
	if d.Status == DockOccupied {
		return d.CurrentTruckID != "" && d.AssignedAt != nil
	}
	return d.CurrentTruckID == "" && d.AssignedAt == nil
}

// SortDocks orders docks by id, numerically when ids share the "D" prefix so
// that D2 sorts before D10.
func SortDocks(docks []Dock) {
	sort.SliceStable(docks, func(i, j int) bool {
		a, b := docks[i].ID, docks[j].ID
		na, erra := strconv.Atoi(strings.TrimPrefix(a, "D"))
		nb, errb := strconv.Atoi(strings.TrimPrefix(b, "D"))
		if erra == nil && errb == nil && na != nb {
			return na < nb
		}
		return a < b
	})
}
