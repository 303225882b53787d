package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/dockyard/core/events"
	"github.com/kilianp07/dockyard/core/lifecycle"
	"github.com/kilianp07/dockyard/core/metrics"
	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/core/monitoring"
)

// Book creates the appointment and queues its truck at the requested time.
func (s *Scheduler) Book(ctx context.Context, req lifecycle.BookRequest) (model.Appointment, model.QueueEntry, error) {
	a, err := s.life.Book(ctx, req)
	if err != nil {
		return model.Appointment{}, model.QueueEntry{}, err
	}
	e, err := s.queue.Enqueue(ctx, a.TruckID, a.ScheduledTime, a.ID, a.Type)
	if err != nil {
		return a, model.QueueEntry{}, fmt.Errorf("queue booked truck %s: %w", a.TruckID, err)
	}
	s.log.Infow("appointment booked", map[string]any{"appointmentId": a.ID, "truckId": a.TruckID, "type": string(a.Type)})
	return a, e, nil
}

// Arrive marks the truck as on site and refreshes its queue entry with the
// actual arrival time.
func (s *Scheduler) Arrive(ctx context.Context, truckID, appointmentID string) (model.Appointment, error) {
	unlock := s.locks.Lock(appointmentID)
	defer unlock()
	return s.arriveLocked(ctx, truckID, appointmentID)
}

func (s *Scheduler) arriveLocked(ctx context.Context, truckID, appointmentID string) (model.Appointment, error) {
	a, err := s.appointmentOf(ctx, truckID, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	a, err = s.life.Transition(ctx, a.ID, model.StatusArrived)
	if err != nil {
		return a, err
	}
	if _, err := s.queue.Enqueue(ctx, a.TruckID, *a.ActualArrivalTime, a.ID, a.Type); err != nil {
		return a, fmt.Errorf("queue arrived truck %s: %w", a.TruckID, err)
	}
	return a, nil
}

// Assign is the manual path: an operator pairs an appointment with a dock.
func (s *Scheduler) Assign(ctx context.Context, truckID, dockID, appointmentID string) (model.AssignmentRecord, error) {
	if dockID == "" {
		return model.AssignmentRecord{}, fmt.Errorf("%w: dockId is required", model.ErrInvalidRequest)
	}
	unlock := s.locks.Lock(appointmentID)
	defer unlock()
	if _, err := s.appointmentOf(ctx, truckID, appointmentID); err != nil {
		assignmentsTotal.WithLabelValues(metrics.PathManual, resultOf(err)).Inc()
		return model.AssignmentRecord{}, err
	}
	return s.attemptLocked(ctx, appointmentID, dockID, metrics.PathManual)
}

// AttemptAssignment pairs the appointment with the dock. It fails without
// side effects when the appointment is not assignable, the dock cannot serve
// it or another truck took the dock first.
func (s *Scheduler) AttemptAssignment(ctx context.Context, appointmentID, dockID, path string) (model.AssignmentRecord, error) {
	unlock := s.locks.Lock(appointmentID)
	defer unlock()
	return s.attemptLocked(ctx, appointmentID, dockID, path)
}

func (s *Scheduler) attemptLocked(ctx context.Context, appointmentID, dockID, path string) (rec model.AssignmentRecord, err error) {
	defer func() { assignmentsTotal.WithLabelValues(path, resultOf(err)).Inc() }()

	a, err := s.life.Get(ctx, appointmentID)
	if err != nil {
		return model.AssignmentRecord{}, err
	}
	if !a.Status.Assignable() {
		// the truck already got a dock; a leftover entry must not be retried
		s.dropQueueEntry(ctx, a.ID)
		return model.AssignmentRecord{}, &model.InvalidTransitionError{From: a.Status, To: model.StatusAssigned}
	}
	dock, err := s.alloc.Get(ctx, dockID)
	if err != nil {
		return model.AssignmentRecord{}, err
	}
	if !dock.Type.Serves(a.Type) {
		return model.AssignmentRecord{}, &model.UnavailableError{
			DockID: dockID,
			Reason: fmt.Sprintf("%s dock cannot serve %s", dock.Type, a.Type),
		}
	}

	rec, ok, err := s.alloc.TryAssign(ctx, dockID, a.TruckID, a.ID)
	if err != nil {
		return model.AssignmentRecord{}, err
	}
	if !ok {
		return model.AssignmentRecord{}, &model.UnavailableError{DockID: dockID, Reason: "occupied"}
	}

	a, err = s.life.AdvanceTo(ctx, a.ID, model.StatusAssigned, lifecycle.WithDock(dockID))
	if err != nil {
		if rbErr := s.alloc.Rollback(ctx, rec); rbErr != nil {
			monitoring.CaptureException(rbErr, map[string]string{"module": "dispatch", "dock_id": dockID})
			return model.AssignmentRecord{}, errors.Join(err, rbErr)
		}
		return model.AssignmentRecord{}, err
	}

	s.dropQueueEntry(ctx, a.ID)
	s.armRelease(rec, s.cfg.Hold)
	s.pub.Publish(events.DockAssigned(rec))

	ev := metrics.AssignmentEvent{
		DockID:        rec.DockID,
		DockType:      dock.Type,
		TruckID:       rec.TruckID,
		AppointmentID: rec.AppointmentID,
		Path:          path,
		Time:          rec.AssignedAt,
	}
	if a.ActualArrivalTime != nil && rec.AssignedAt.After(*a.ActualArrivalTime) {
		ev.Wait = rec.AssignedAt.Sub(*a.ActualArrivalTime)
	}
	if err := s.sink.RecordAssignment(ev); err != nil {
		s.log.Warnf("record assignment: %v", err)
	}
	s.log.Infow("dock assigned", map[string]any{
		"dockId": rec.DockID, "truckId": rec.TruckID, "appointmentId": rec.AppointmentID, "path": path,
	})
	return rec, nil
}

func (s *Scheduler) dropQueueEntry(ctx context.Context, appointmentID string) {
	if _, err := s.queue.DequeueAppointment(ctx, appointmentID); err != nil {
		s.log.Errorf("dequeue appointment %s: %v", appointmentID, err)
	}
}

// appointmentOf loads the appointment and checks it belongs to truckID.
func (s *Scheduler) appointmentOf(ctx context.Context, truckID, appointmentID string) (model.Appointment, error) {
	a, err := s.life.Get(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if truckID != "" && a.TruckID != truckID {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s does not belong to truck %s", model.ErrInvalidRequest, appointmentID, truckID)
	}
	return a, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "assigned"
	case errors.Is(err, model.ErrResourceUnavailable):
		return "unavailable"
	case errors.Is(err, model.ErrInvalidTransition), errors.Is(err, model.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
