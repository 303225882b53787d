package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/dockyard/core/events"
	"github.com/kilianp07/dockyard/core/metrics"
	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/core/monitoring"
	"github.com/kilianp07/dockyard/core/store"
)

type releaseTimer struct {
	timer *time.Timer
	rec   model.AssignmentRecord
	token uint64
}

// armRelease schedules the automatic release of rec after d. A timer already
// armed for the same appointment is replaced.
func (s *Scheduler) armRelease(rec model.AssignmentRecord, d time.Duration) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if s.closed {
		return
	}
	if old, ok := s.timers[rec.AppointmentID]; ok && old.timer.Stop() {
		s.inflight.Done()
	}
	s.nextTok++
	tok := s.nextTok
	s.inflight.Add(1)
	rt := &releaseTimer{rec: rec, token: tok}
	// the callback blocks on timersMu until the entry below is stored
	rt.timer = time.AfterFunc(d, func() { s.fire(rec.AppointmentID, tok) })
	s.timers[rec.AppointmentID] = rt
	pendingReleases.Set(float64(len(s.timers)))
}

// cancelRelease disarms the timer of appointmentID, if any.
func (s *Scheduler) cancelRelease(appointmentID string) bool {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	rt, ok := s.timers[appointmentID]
	if !ok {
		return false
	}
	delete(s.timers, appointmentID)
	if rt.timer.Stop() {
		s.inflight.Done()
	}
	pendingReleases.Set(float64(len(s.timers)))
	return true
}

// PendingReleases returns the ids of appointments with an armed timer.
func (s *Scheduler) PendingReleases() []string {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	ids := make([]string, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	return ids
}

func (s *Scheduler) fire(appointmentID string, token uint64) {
	defer s.inflight.Done()

	s.timersMu.Lock()
	rt, ok := s.timers[appointmentID]
	if !ok || rt.token != token {
		s.timersMu.Unlock()
		return
	}
	delete(s.timers, appointmentID)
	pendingReleases.Set(float64(len(s.timers)))
	s.timersMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err := monitoring.CapturePanic(r, map[string]string{"module": "dispatch_release", "appointment_id": appointmentID})
			s.log.Errorf("release timer: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OpTimeout)
	defer cancel()
	if err := s.expire(ctx, rt.rec); err != nil {
		s.log.Errorf("release dock %s for truck %s: %v", rt.rec.DockID, rt.rec.TruckID, err)
		monitoring.CaptureException(err, map[string]string{"module": "dispatch_release", "dock_id": rt.rec.DockID})
	}
}

// expire is the timer path: the hold is over, the dock goes back to the pool
// and the appointment moves on to departed.
func (s *Scheduler) expire(ctx context.Context, rec model.AssignmentRecord) error {
	unlock := s.locks.Lock(rec.AppointmentID)
	defer unlock()
	a, err := s.life.Get(ctx, rec.AppointmentID)
	if err != nil {
		return err
	}
	if a.Status != model.StatusAssigned && a.Status != model.StatusLoading {
		s.log.Debugf("appointment %s already %s, timer skipped", a.ID, a.Status)
		return nil
	}
	_, err = s.finish(ctx, a, rec, model.StatusDeparted, events.ReasonTimer)
	return err
}

// finish releases the dock held for rec and walks the appointment up to
// target. The release is scoped to the truck so a dock already handed to
// someone else is left alone.
func (s *Scheduler) finish(ctx context.Context, a model.Appointment, rec model.AssignmentRecord, target model.AppointmentStatus, reason string) (model.Appointment, error) {
	if rec.DockID != "" {
		released, err := s.alloc.ReleaseTruck(ctx, rec.DockID, rec.TruckID)
		if err != nil {
			return a, err
		}
		if released {
			at := s.now().UTC()
			s.pub.Publish(events.DockReleased(rec, at, reason))
			releasesTotal.WithLabelValues(reason).Inc()
			if rr, ok := s.sink.(metrics.ReleaseRecorder); ok {
				ev := metrics.ReleaseEvent{
					DockID:        rec.DockID,
					TruckID:       rec.TruckID,
					AppointmentID: rec.AppointmentID,
					Hold:          at.Sub(rec.AssignedAt),
					Reason:        reason,
					Time:          at,
				}
				if err := rr.RecordRelease(ev); err != nil {
					s.log.Warnf("record release: %v", err)
				}
			}
			s.log.Infow("dock released", map[string]any{
				"dockId": rec.DockID, "truckId": rec.TruckID, "appointmentId": rec.AppointmentID, "reason": reason,
			})
		}
	}
	return s.life.AdvanceTo(ctx, a.ID, target)
}

// openRecord returns the open assignment of the appointment. When none is
// stored it falls back to what the appointment itself knows.
func (s *Scheduler) openRecord(ctx context.Context, a model.Appointment) (model.AssignmentRecord, error) {
	recs, err := s.records.ListAssignments(ctx, store.AssignmentFilter{AppointmentID: a.ID, OpenOnly: true, Limit: 1})
	if err != nil {
		return model.AssignmentRecord{}, err
	}
	if len(recs) > 0 {
		return recs[0], nil
	}
	return model.AssignmentRecord{DockID: a.DockID, TruckID: a.TruckID, AppointmentID: a.ID}, nil
}

// ForceComplete ends the hold early: the timer is cancelled, the dock goes
// back to the pool and the appointment is completed. The truck still has to
// depart.
func (s *Scheduler) ForceComplete(ctx context.Context, appointmentID string) (model.Appointment, error) {
	unlock := s.locks.Lock(appointmentID)
	defer unlock()
	a, err := s.life.Get(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if a.Status != model.StatusAssigned && a.Status != model.StatusLoading {
		return a, &model.InvalidTransitionError{From: a.Status, To: model.StatusCompleted}
	}
	return s.complete(ctx, a, events.ReasonForce)
}

func (s *Scheduler) complete(ctx context.Context, a model.Appointment, reason string) (model.Appointment, error) {
	s.cancelRelease(a.ID)
	rec, err := s.openRecord(ctx, a)
	if err != nil {
		return a, err
	}
	return s.finish(ctx, a, rec, model.StatusCompleted, reason)
}

// Depart records the departure of a completed truck.
func (s *Scheduler) Depart(ctx context.Context, truckID, appointmentID string) (model.Appointment, error) {
	unlock := s.locks.Lock(appointmentID)
	defer unlock()
	a, err := s.life.Get(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if truckID != "" && a.TruckID != truckID {
		return model.Appointment{}, fmt.Errorf("%w: truck %s has no appointment %s", model.ErrNotFound, truckID, appointmentID)
	}
	if a.Status != model.StatusCompleted {
		return a, fmt.Errorf("%w: no completed appointment %s for truck %s (status %s)", model.ErrNotFound, appointmentID, a.TruckID, a.Status)
	}
	return s.depart(ctx, a, events.ReasonDepart)
}

func (s *Scheduler) depart(ctx context.Context, a model.Appointment, reason string) (model.Appointment, error) {
	s.cancelRelease(a.ID)
	rec, err := s.openRecord(ctx, a)
	if err != nil {
		return a, err
	}
	return s.finish(ctx, a, rec, model.StatusDeparted, reason)
}

// UpdateStatus applies an operator-requested transition. Only the immediate
// successor is accepted; assigned is reachable through Assign alone.
func (s *Scheduler) UpdateStatus(ctx context.Context, appointmentID string, status model.AppointmentStatus) (model.Appointment, error) {
	if status == model.StatusAssigned {
		return model.Appointment{}, fmt.Errorf("%w: appointments are assigned through the dispatcher", model.ErrInvalidRequest)
	}
	unlock := s.locks.Lock(appointmentID)
	defer unlock()
	a, err := s.life.Get(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	switch status {
	case model.StatusArrived:
		return s.arriveLocked(ctx, a.TruckID, a.ID)
	case model.StatusCompleted, model.StatusDeparted:
		if err := model.CheckTransition(a.Status, status); err != nil {
			return a, err
		}
		if status == model.StatusCompleted {
			return s.complete(ctx, a, events.ReasonStatus)
		}
		return s.depart(ctx, a, events.ReasonStatus)
	default:
		return s.life.Transition(ctx, a.ID, status)
	}
}

// Recover re-arms release timers for assignments still open in the store and
// finishes releases interrupted by a restart. It returns the number of timers
// armed.
func (s *Scheduler) Recover(ctx context.Context) (int, error) {
	recs, err := s.records.ListAssignments(ctx, store.AssignmentFilter{OpenOnly: true})
	if err != nil {
		return 0, err
	}
	armed := 0
	for _, rec := range recs {
		n, err := s.recoverOne(ctx, rec)
		if err != nil {
			s.log.Errorf("recover assignment %s: %v", rec.ID, err)
			continue
		}
		armed += n
	}
	if armed > 0 {
		s.log.Infof("re-armed %d release timers", armed)
	}
	return armed, nil
}

func (s *Scheduler) recoverOne(ctx context.Context, rec model.AssignmentRecord) (int, error) {
	unlock := s.locks.Lock(rec.AppointmentID)
	defer unlock()
	a, err := s.life.Get(ctx, rec.AppointmentID)
	if err != nil {
		return 0, err
	}
	switch a.Status {
	case model.StatusAssigned, model.StatusLoading:
		remaining := rec.AssignedAt.Add(s.cfg.Hold).Sub(s.now())
		if remaining < 0 {
			remaining = 0
		}
		s.armRelease(rec, remaining)
		return 1, nil
	case model.StatusCompleted:
		_, err := s.alloc.ReleaseTruck(ctx, rec.DockID, rec.TruckID)
		return 0, err
	case model.StatusDeparted:
		at := s.now().UTC()
		if a.DepartureTime != nil {
			at = *a.DepartureTime
		}
		if _, err := s.alloc.ReleaseTruck(ctx, rec.DockID, rec.TruckID); err != nil {
			return 0, err
		}
		_, err := s.records.CloseAssignments(ctx, a.ID, at)
		return 0, err
	default:
		// the dock was won but the appointment never moved to assigned
		return 0, s.alloc.Rollback(ctx, rec)
	}
}
