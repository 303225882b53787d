package events

import (
	"time"

	"github.com/kilianp07/dockyard/core/model"
)

// Kind names an event type. It is also used as the topic suffix by notifiers.
type Kind string

const (
	KindTruckQueued       Kind = "truck.queued"
	KindDockAssigned      Kind = "dock.assigned"
	KindDockReleased      Kind = "dock.released"
	KindAppointmentStatus Kind = "appointment.status"
)

// Event carries a snapshot of the entity that changed. Only the fields that
// belong to Kind are set.
type Event struct {
	Kind        Kind                    `json:"kind"`
	At          time.Time               `json:"at"`
	DockID      string                  `json:"dockId,omitempty"`
	TruckID     string                  `json:"truckId,omitempty"`
	Appointment *model.Appointment      `json:"appointment,omitempty"`
	Queue       *model.QueueEntry       `json:"queue,omitempty"`
	Record      *model.AssignmentRecord `json:"record,omitempty"`
	// Reason explains a release.
	Reason string `json:"reason,omitempty"`
}

// Release reasons.
const (
	ReasonTimer  = "timer"
	ReasonForce  = "force"
	ReasonDepart = "depart"
	ReasonStatus = "status"
)

// Publisher accepts events. Implementations must not block.
type Publisher interface {
	Publish(Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// DockAssigned builds the event for a successful assignment.
func DockAssigned(rec model.AssignmentRecord) Event {
	return Event{Kind: KindDockAssigned, At: rec.AssignedAt, DockID: rec.DockID, TruckID: rec.TruckID, Record: &rec}
}

// DockReleased builds the event for a dock returned to the pool. rec is the
// assignment that held the dock.
func DockReleased(rec model.AssignmentRecord, at time.Time, reason string) Event {
	return Event{Kind: KindDockReleased, At: at, DockID: rec.DockID, TruckID: rec.TruckID, Record: &rec, Reason: reason}
}

// AppointmentStatus builds the event for a status change.
func AppointmentStatus(a model.Appointment, at time.Time) Event {
	return Event{Kind: KindAppointmentStatus, At: at, DockID: a.DockID, TruckID: a.TruckID, Appointment: &a}
}

// TruckQueued builds the event for a queue upsert.
func TruckQueued(e model.QueueEntry) Event {
	return Event{Kind: KindTruckQueued, At: e.ArrivalTime, TruckID: e.TruckID, Queue: &e}
}
