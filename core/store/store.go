// Package store defines the resource store ports used by the dock
// scheduler. Implementations live under infra/store.
//
// Every mutating call is individually atomic. Failures other than a missing
// entity are reported as *model.StorageError.
package store

import (
	"context"
	"time"

	"github.com/kilianp07/dockyard/core/model"
)

// AssignRequest describes a compare-and-set of a dock from available to
// occupied by TruckID, together with the audit record it produces.
type AssignRequest struct {
	RecordID      string
	DockID        string
	TruckID       string
	AppointmentID string
	At            time.Time
}

// DockFilter narrows ListDocks. Zero values match everything.
type DockFilter struct {
	Type   model.DockType
	Status model.DockStatus
}

// DockStore persists docks. Docks are mutated only through AssignDock and
// ReleaseDock once inserted.
type DockStore interface {
	InsertDock(ctx context.Context, d model.Dock) error
	GetDock(ctx context.Context, id string) (model.Dock, error)
	ListDocks(ctx context.Context, f DockFilter) ([]model.Dock, error)
	// AssignDock atomically occupies the dock and appends the assignment
	// record. It returns false without mutating anything when the dock is
	// not available. A truck holds at most one dock: when req.TruckID
	// already occupies another dock nothing changes and the error is a
	// model.TruckDocked.
	AssignDock(ctx context.Context, req AssignRequest) (model.AssignmentRecord, bool, error)
	// ReleaseDock frees the dock. When truckID is non-empty the dock is only
	// freed if that truck still holds it. Releasing a free dock reports false
	// and no error.
	ReleaseDock(ctx context.Context, dockID, truckID string) (bool, error)
}

// AppointmentFilter narrows ListAppointments.
type AppointmentFilter struct {
	TruckID string
	Status  model.AppointmentStatus
}

// AppointmentStore persists appointments.
type AppointmentStore interface {
	InsertAppointment(ctx context.Context, a model.Appointment) error
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]model.Appointment, error)
	// UpdateAppointment writes a only if the stored status still equals
	// expected and reports whether the write happened.
	UpdateAppointment(ctx context.Context, a model.Appointment, expected model.AppointmentStatus) (bool, error)
}

// QueueStore persists the truck queue. At most one entry exists per
// appointment.
type QueueStore interface {
	// UpsertQueueEntry inserts e, or refreshes the arrival time of the
	// existing entry for the same appointment, and returns the stored entry.
	UpsertQueueEntry(ctx context.Context, e model.QueueEntry) (model.QueueEntry, error)
	DeleteQueueEntry(ctx context.Context, id string) (bool, error)
	// ListQueueEntries returns entries in ascending arrival order.
	ListQueueEntries(ctx context.Context) ([]model.QueueEntry, error)
}

// AssignmentFilter narrows ListAssignments. Limit <= 0 means unbounded.
type AssignmentFilter struct {
	AppointmentID string
	OpenOnly      bool
	Limit         int
}

// AssignmentStore reads and closes assignment records.
type AssignmentStore interface {
	// ListAssignments returns records in descending assignedAt order.
	ListAssignments(ctx context.Context, f AssignmentFilter) ([]model.AssignmentRecord, error)
	// CloseAssignments sets departedAt on every open record of the appointment.
	CloseAssignments(ctx context.Context, appointmentID string, at time.Time) (int, error)
	// DeleteAssignment removes a record whose pairing was rolled back.
	DeleteAssignment(ctx context.Context, id string) error
}

// Store groups every port of the resource store.
type Store interface {
	DockStore
	AppointmentStore
	QueueStore
	AssignmentStore
	Close() error
}
