package dispatch

import (
	"context"

	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/core/stats"
	"github.com/kilianp07/dockyard/core/store"
)

// Docks returns every dock ordered by id.
func (s *Scheduler) Docks(ctx context.Context) ([]model.Dock, error) {
	return s.alloc.List(ctx)
}

// TruckQueue returns waiting trucks in arrival order.
func (s *Scheduler) TruckQueue(ctx context.Context) ([]model.QueueEntry, error) {
	return s.queue.PeekCandidates(ctx)
}

// Appointments lists appointments, optionally for one truck.
func (s *Scheduler) Appointments(ctx context.Context, truckID string) ([]model.Appointment, error) {
	return s.life.List(ctx, store.AppointmentFilter{TruckID: truckID})
}

// Appointment returns one appointment.
func (s *Scheduler) Appointment(ctx context.Context, id string) (model.Appointment, error) {
	return s.life.Get(ctx, id)
}

// RecentAssignments returns the newest assignment records first. A limit of
// zero or less uses the configured default.
func (s *Scheduler) RecentAssignments(ctx context.Context, limit int) ([]model.AssignmentRecord, error) {
	if limit <= 0 {
		limit = s.cfg.RecentLimit
	}
	return s.records.ListAssignments(ctx, store.AssignmentFilter{Limit: limit})
}

// Stats summarizes the current state of the yard.
func (s *Scheduler) Stats(ctx context.Context) (stats.Summary, error) {
	appts, err := s.life.List(ctx, store.AppointmentFilter{})
	if err != nil {
		return stats.Summary{}, err
	}
	docks, err := s.alloc.List(ctx)
	if err != nil {
		return stats.Summary{}, err
	}
	queue, err := s.queue.PeekCandidates(ctx)
	if err != nil {
		return stats.Summary{}, err
	}
	recs, err := s.records.ListAssignments(ctx, store.AssignmentFilter{})
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.Summarize(appts, docks, queue, recs), nil
}
