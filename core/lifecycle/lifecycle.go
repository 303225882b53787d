// Package lifecycle owns the appointment state machine. Appointments move
// strictly forward through booked, arrived, assigned, loading, completed and
// departed, one step at a time.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/dockyard/core/events"
	"github.com/kilianp07/dockyard/core/logger"
	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/core/store"
)

// Store is the subset of the resource store the manager needs.
type Store interface {
	store.AppointmentStore
	store.AssignmentStore
}

// Manager applies appointment transitions.
type Manager struct {
	store Store
	now   func() time.Time
	newID func() string
	pub   events.Publisher
	log   logger.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithIDs(f func() string) Option { return func(m *Manager) { m.newID = f } }

func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.pub = p
		}
	}
}

func WithLogger(l logger.Logger) Option { return func(m *Manager) { m.log = logger.OrNop(l) } }

// New returns a Manager backed by s.
func New(s Store, opts ...Option) *Manager {
	m := &Manager{store: s, now: time.Now, newID: uuid.NewString, pub: events.NopPublisher{}, log: logger.Nop{}}
	for _, o := range opts {
		o(m)
	}
	return m
}

// BookRequest is the input of Book.
type BookRequest struct {
	TruckID       string
	Supplier      string
	RequestedTime time.Time
	Type          model.AppointmentType
}

// Validate checks mandatory fields.
func (r BookRequest) Validate() error {
	if strings.TrimSpace(r.TruckID) == "" {
		return fmt.Errorf("%w: truckId is required", model.ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Supplier) == "" {
		return fmt.Errorf("%w: supplier is required", model.ErrInvalidRequest)
	}
	if r.RequestedTime.IsZero() {
		return fmt.Errorf("%w: requestedTime is required", model.ErrInvalidRequest)
	}
	if _, err := model.ParseAppointmentType(string(r.Type)); err != nil {
		return err
	}
	return nil
}

// Book creates an appointment in the booked state.
func (m *Manager) Book(ctx context.Context, req BookRequest) (model.Appointment, error) {
	if err := req.Validate(); err != nil {
		return model.Appointment{}, err
	}
	a := model.Appointment{
		ID:            m.newID(),
		TruckID:       strings.TrimSpace(req.TruckID),
		Supplier:      strings.TrimSpace(req.Supplier),
		ScheduledTime: req.RequestedTime.UTC(),
		Status:        model.StatusBooked,
		Type:          req.Type,
	}
	if err := m.store.InsertAppointment(ctx, a); err != nil {
		return model.Appointment{}, err
	}
	m.pub.Publish(events.AppointmentStatus(a, m.now().UTC()))
	return a, nil
}

// Get returns one appointment.
func (m *Manager) Get(ctx context.Context, id string) (model.Appointment, error) {
	return m.store.GetAppointment(ctx, id)
}

// List returns appointments ordered by scheduled time.
func (m *Manager) List(ctx context.Context, f store.AppointmentFilter) ([]model.Appointment, error) {
	return m.store.ListAppointments(ctx, f)
}

type transitionOpts struct {
	dockID string
}

// TransitionOption customizes a transition.
type TransitionOption func(*transitionOpts)

// WithDock records the dock on the step into assigned.
func WithDock(dockID string) TransitionOption {
	return func(o *transitionOpts) { o.dockID = dockID }
}

// Transition moves the appointment to the immediate successor status to.
// Anything else fails with *model.InvalidTransitionError. Entering assigned
// requires WithDock; entering departed closes the open assignment records.
func (m *Manager) Transition(ctx context.Context, id string, to model.AppointmentStatus, opts ...TransitionOption) (model.Appointment, error) {
	var o transitionOpts
	for _, fn := range opts {
		fn(&o)
	}
	cur, err := m.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := model.CheckTransition(cur.Status, to); err != nil {
		return cur, err
	}
	if to == model.StatusAssigned && o.dockID == "" {
		return cur, fmt.Errorf("%w: assigning appointment %s requires a dock", model.ErrInvalidRequest, id)
	}

	at := m.now().UTC()
	next := cur
	next.Apply(to, at)
	if to == model.StatusAssigned {
		next.DockID = o.dockID
	}
	ok, err := m.store.UpdateAppointment(ctx, next, cur.Status)
	if err != nil {
		return cur, err
	}
	if !ok {
		// lost a race with another writer; report against what is stored now
		latest, gerr := m.store.GetAppointment(ctx, id)
		if gerr != nil {
			return cur, gerr
		}
		return latest, &model.InvalidTransitionError{From: latest.Status, To: to}
	}

	m.log.Debugw("appointment transition", map[string]any{
		"appointmentId": id, "from": string(cur.Status), "to": string(to),
	})
	m.pub.Publish(events.AppointmentStatus(next, at))

	if to == model.StatusDeparted {
		if _, err := m.store.CloseAssignments(ctx, id, at); err != nil {
			return next, fmt.Errorf("close assignments of %s: %w", id, err)
		}
	}
	return next, nil
}

// AdvanceTo steps the appointment forward one transition at a time until it
// reaches to. Reaching the current status is a no-op; moving backwards fails.
func (m *Manager) AdvanceTo(ctx context.Context, id string, to model.AppointmentStatus, opts ...TransitionOption) (model.Appointment, error) {
	cur, err := m.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	path, err := cur.Status.PathTo(to)
	if err != nil {
		return cur, err
	}
	for _, step := range path {
		cur, err = m.Transition(ctx, id, step, opts...)
		if err != nil {
			return cur, err
		}
	}
	return cur, nil
}
