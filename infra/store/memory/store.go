// Package memory provides an in-process resource store. State does not
// survive restarts; it backs tests and the "memory" driver.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/core/store"
)

type dockSlot struct {
	mu   sync.Mutex
	dock model.Dock
}

// Store keeps every table in maps. Each dock has its own mutex so unrelated
// docks never contend.
type Store struct {
	docksMu sync.RWMutex
	docks   map[string]*dockSlot

	// truck id -> dock id for occupied docks; taken after a slot lock
	dockedMu sync.Mutex
	docked   map[string]string

	apptMu sync.RWMutex
	appts  map[string]model.Appointment

	queueMu sync.RWMutex
	queue   map[string]model.QueueEntry

	asnMu       sync.RWMutex
	assignments []model.AssignmentRecord
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		docks:  make(map[string]*dockSlot),
		docked: make(map[string]string),
		appts: make(map[string]model.Appointment),
		queue: make(map[string]model.QueueEntry),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) slot(id string) (*dockSlot, bool) {
	s.docksMu.RLock()
	defer s.docksMu.RUnlock()
	sl, ok := s.docks[id]
	return sl, ok
}

func (s *Store) InsertDock(_ context.Context, d model.Dock) error {
	s.docksMu.Lock()
	defer s.docksMu.Unlock()
	if _, ok := s.docks[d.ID]; ok {
		return model.NewStorageError("insert dock", errDuplicate(d.ID))
	}
	if d.Status == model.DockOccupied && d.CurrentTruckID != "" {
		s.dockedMu.Lock()
		defer s.dockedMu.Unlock()
		if _, ok := s.docked[d.CurrentTruckID]; ok {
			return model.TruckDocked(d.ID, d.CurrentTruckID)
		}
		s.docked[d.CurrentTruckID] = d.ID
	}
	s.docks[d.ID] = &dockSlot{dock: cloneDock(d)}
	return nil
}

func (s *Store) GetDock(_ context.Context, id string) (model.Dock, error) {
	sl, ok := s.slot(id)
	if !ok {
		return model.Dock{}, model.NotFound("dock", id)
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return cloneDock(sl.dock), nil
}

func (s *Store) ListDocks(_ context.Context, f store.DockFilter) ([]model.Dock, error) {
	s.docksMu.RLock()
	slots := make([]*dockSlot, 0, len(s.docks))
	for _, sl := range s.docks {
		slots = append(slots, sl)
	}
	s.docksMu.RUnlock()

	res := make([]model.Dock, 0, len(slots))
	for _, sl := range slots {
		sl.mu.Lock()
		d := cloneDock(sl.dock)
		sl.mu.Unlock()
		if f.Type != "" && d.Type != f.Type {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		res = append(res, d)
	}
	model.SortDocks(res)
	return res, nil
}

func (s *Store) AssignDock(_ context.Context, req store.AssignRequest) (model.AssignmentRecord, bool, error) {
	sl, ok := s.slot(req.DockID)
	if !ok {
		return model.AssignmentRecord{}, false, model.NotFound("dock", req.DockID)
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.dock.Status != model.DockAvailable {
		return model.AssignmentRecord{}, false, nil
	}
	s.dockedMu.Lock()
	if _, ok := s.docked[req.TruckID]; ok {
		s.dockedMu.Unlock()
		return model.AssignmentRecord{}, false, model.TruckDocked(req.DockID, req.TruckID)
	}
	s.docked[req.TruckID] = req.DockID
	s.dockedMu.Unlock()

	at := req.At
	sl.dock.Status = model.DockOccupied
	sl.dock.CurrentTruckID = req.TruckID
	sl.dock.AssignedAt = &at

	rec := model.AssignmentRecord{
		ID:            req.RecordID,
		TruckID:       req.TruckID,
		DockID:        req.DockID,
		AppointmentID: req.AppointmentID,
		AssignedAt:    req.At,
	}
	s.asnMu.Lock()
	s.assignments = append(s.assignments, rec)
	s.asnMu.Unlock()
	return rec, true, nil
}

func (s *Store) ReleaseDock(_ context.Context, dockID, truckID string) (bool, error) {
	sl, ok := s.slot(dockID)
	if !ok {
		return false, model.NotFound("dock", dockID)
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.dock.Status != model.DockOccupied {
		return false, nil
	}
	if truckID != "" && sl.dock.CurrentTruckID != truckID {
		return false, nil
	}
	s.dockedMu.Lock()
	if s.docked[sl.dock.CurrentTruckID] == dockID {
		delete(s.docked, sl.dock.CurrentTruckID)
	}
	s.dockedMu.Unlock()
	sl.dock.Status = model.DockAvailable
	sl.dock.CurrentTruckID = ""
	sl.dock.AssignedAt = nil
	return true, nil
}

func (s *Store) InsertAppointment(_ context.Context, a model.Appointment) error {
	s.apptMu.Lock()
	defer s.apptMu.Unlock()
	if _, ok := s.appts[a.ID]; ok {
		return model.NewStorageError("insert appointment", errDuplicate(a.ID))
	}
	s.appts[a.ID] = cloneAppointment(a)
	return nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.apptMu.RLock()
	defer s.apptMu.RUnlock()
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, model.NotFound("appointment", id)
	}
	return cloneAppointment(a), nil
}

func (s *Store) ListAppointments(_ context.Context, f store.AppointmentFilter) ([]model.Appointment, error) {
	s.apptMu.RLock()
	defer s.apptMu.RUnlock()
	res := make([]model.Appointment, 0, len(s.appts))
	for _, a := range s.appts {
		if f.TruckID != "" && a.TruckID != f.TruckID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		res = append(res, cloneAppointment(a))
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].ScheduledTime.Equal(res[j].ScheduledTime) {
			return res[i].ID < res[j].ID
		}
		return res[i].ScheduledTime.Before(res[j].ScheduledTime)
	})
	return res, nil
}

func (s *Store) UpdateAppointment(_ context.Context, a model.Appointment, expected model.AppointmentStatus) (bool, error) {
	s.apptMu.Lock()
	defer s.apptMu.Unlock()
	cur, ok := s.appts[a.ID]
	if !ok {
		return false, model.NotFound("appointment", a.ID)
	}
	if cur.Status != expected {
		return false, nil
	}
	s.appts[a.ID] = cloneAppointment(a)
	return true, nil
}

func (s *Store) UpsertQueueEntry(_ context.Context, e model.QueueEntry) (model.QueueEntry, error) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	for id, cur := range s.queue {
		if cur.AppointmentID == e.AppointmentID {
			cur.ArrivalTime = e.ArrivalTime
			s.queue[id] = cur
			return cur, nil
		}
	}
	s.queue[e.ID] = e
	return e, nil
}

func (s *Store) DeleteQueueEntry(_ context.Context, id string) (bool, error) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if _, ok := s.queue[id]; !ok {
		return false, nil
	}
	delete(s.queue, id)
	return true, nil
}

func (s *Store) ListQueueEntries(_ context.Context) ([]model.QueueEntry, error) {
	s.queueMu.RLock()
	res := make([]model.QueueEntry, 0, len(s.queue))
	for _, e := range s.queue {
		res = append(res, e)
	}
	s.queueMu.RUnlock()
	model.SortQueue(res)
	return res, nil
}

func (s *Store) ListAssignments(_ context.Context, f store.AssignmentFilter) ([]model.AssignmentRecord, error) {
	s.asnMu.RLock()
	res := make([]model.AssignmentRecord, 0, len(s.assignments))
	for _, r := range s.assignments {
		if f.AppointmentID != "" && r.AppointmentID != f.AppointmentID {
			continue
		}
		if f.OpenOnly && !r.Open() {
			continue
		}
		res = append(res, cloneRecord(r))
	}
	s.asnMu.RUnlock()
	model.SortAssignmentsDesc(res)
	if f.Limit > 0 && len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

func (s *Store) CloseAssignments(_ context.Context, appointmentID string, at time.Time) (int, error) {
	s.asnMu.Lock()
	defer s.asnMu.Unlock()
	n := 0
	for i := range s.assignments {
		r := &s.assignments[i]
		if r.AppointmentID != appointmentID || !r.Open() {
			continue
		}
		t := at
		r.DepartedAt = &t
		n++
	}
	return n, nil
}

func (s *Store) DeleteAssignment(_ context.Context, id string) error {
	s.asnMu.Lock()
	defer s.asnMu.Unlock()
	for i, r := range s.assignments {
		if r.ID == id {
			s.assignments = append(s.assignments[:i], s.assignments[i+1:]...)
			return nil
		}
	}
	return model.NotFound("assignment", id)
}
