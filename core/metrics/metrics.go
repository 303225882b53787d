package metrics

import (
	"time"

	"github.com/kilianp07/dockyard/core/model"
)

// Assignment paths.
const (
	PathManual = "manual"
	PathAuto   = "auto"
)

// AssignmentEvent is recorded for every truck placed on a dock.
type AssignmentEvent struct {
	DockID        string
	DockType      model.DockType
	TruckID       string
	AppointmentID string
	Path          string
	// Wait is the time between queue entry and assignment.
	Wait time.Duration
	Time time.Time
}

// MetricsSink records scheduler activity for observability purposes.
type MetricsSink interface {
	RecordAssignment(ev AssignmentEvent) error
}

// ReleaseEvent is recorded when a dock returns to the pool.
type ReleaseEvent struct {
	DockID        string
	TruckID       string
	AppointmentID string
	Hold          time.Duration
	Reason        string
	Time          time.Time
}

// ReleaseRecorder records dock releases.
type ReleaseRecorder interface {
	RecordRelease(ev ReleaseEvent) error
}

// SweepEvent summarizes one automatic sweep.
type SweepEvent struct {
	Queued    int
	Available int
	Assigned  bool
	Duration  time.Duration
	Err       string
	Time      time.Time
}

// SweepRecorder records sweep outcomes.
type SweepRecorder interface {
	RecordSweep(ev SweepEvent) error
}

// StatusEvent is recorded for every appointment status change.
type StatusEvent struct {
	AppointmentID string
	TruckID       string
	Type          model.AppointmentType
	Status        model.AppointmentStatus
	Time          time.Time
}

// StatusRecorder records appointment status changes.
type StatusRecorder interface {
	RecordStatus(ev StatusEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignment(AssignmentEvent) error { return nil }
func (NopSink) RecordRelease(ReleaseEvent) error       { return nil }
func (NopSink) RecordSweep(SweepEvent) error           { return nil }
func (NopSink) RecordStatus(StatusEvent) error         { return nil }
