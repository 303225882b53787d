package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/dockyard/core/metrics"
	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/core/monitoring"
)

// Run sweeps every SweepInterval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.cfg.SweepInterval)
	defer t.Stop()
	s.log.Infof("dispatcher started (interval %s, hold %s)", s.cfg.SweepInterval, s.cfg.Hold)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.tick(ctx)
		}
	}
}

// tick runs one sweep. Nothing a sweep does may stop the loop.
func (s *Scheduler) tick(parent context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := monitoring.CapturePanic(r, map[string]string{"module": "dispatch_sweep"})
			s.log.Errorf("sweep: %v", err)
			sweepsTotal.WithLabelValues("error").Inc()
		}
	}()
	ctx, cancel := context.WithTimeout(parent, s.cfg.OpTimeout)
	defer cancel()

	_, _, err := s.Sweep(ctx)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrResourceUnavailable), errors.Is(err, model.ErrInvalidTransition):
		s.log.Warnf("sweep: %v", err)
	default:
		s.log.Errorf("sweep: %v", err)
		monitoring.CaptureException(err, map[string]string{"module": "dispatch_sweep"})
	}
}

// Sweep makes at most one automatic assignment: the selector picks a waiting
// truck and a compatible available dock, which then go through the same
// procedure as a manual assignment. The bool reports whether a truck was
// placed.
func (s *Scheduler) Sweep(ctx context.Context) (rec model.AssignmentRecord, assigned bool, err error) {
	start := time.Now()
	ev := metrics.SweepEvent{Time: s.now().UTC()}
	result := "idle"
	defer func() {
		d := time.Since(start)
		sweepDuration.Observe(d.Seconds())
		sweepsTotal.WithLabelValues(result).Inc()
		if sr, ok := s.sink.(metrics.SweepRecorder); ok {
			ev.Duration = d
			ev.Assigned = assigned
			if err != nil {
				ev.Err = err.Error()
			}
			if rerr := sr.RecordSweep(ev); rerr != nil {
				s.log.Warnf("record sweep: %v", rerr)
			}
		}
	}()

	candidates, err := s.queue.PeekCandidates(ctx)
	if err != nil {
		result = "error"
		return model.AssignmentRecord{}, false, err
	}
	all, err := s.alloc.List(ctx)
	if err != nil {
		result = "error"
		return model.AssignmentRecord{}, false, err
	}
	docks, docked := splitDocks(all)
	ev.Queued, ev.Available = len(candidates), len(docks)
	queueLength.Set(float64(len(candidates)))
	availableDocks.Set(float64(len(docks)))
	candidates = waitingFor(candidates, docked)
	if len(candidates) == 0 || len(docks) == 0 {
		return model.AssignmentRecord{}, false, nil
	}

	entry, dock, ok := s.selector.Select(candidates, docks)
	if !ok {
		return model.AssignmentRecord{}, false, nil
	}
	rec, err = s.AttemptAssignment(ctx, entry.AppointmentID, dock.ID, metrics.PathAuto)
	switch {
	case err == nil:
		result = "assigned"
		return rec, true, nil
	case errors.Is(err, model.ErrResourceUnavailable), errors.Is(err, model.ErrInvalidTransition):
		result = "rejected"
	default:
		result = "error"
	}
	return model.AssignmentRecord{}, false, err
}

// splitDocks separates available docks from the trucks occupying the rest.
func splitDocks(all []model.Dock) ([]model.Dock, map[string]bool) {
	free := make([]model.Dock, 0, len(all))
	docked := make(map[string]bool)
	for _, d := range all {
		if d.Status == model.DockAvailable {
			free = append(free, d)
			continue
		}
		docked[d.CurrentTruckID] = true
	}
	return free, docked
}

// waitingFor drops entries whose truck already holds a dock; they stay
// queued until that dock is released.
func waitingFor(entries []model.QueueEntry, docked map[string]bool) []model.QueueEntry {
	if len(docked) == 0 {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if !docked[e.TruckID] {
			out = append(out, e)
		}
	}
	return out
}
