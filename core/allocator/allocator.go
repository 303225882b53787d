// Package allocator owns dock occupancy. Docks change state only through
// Allocator, and every change is a single compare-and-set in the store.
package allocator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/dockyard/core/logger"
	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/core/store"
)

// Store is the subset of the resource store the allocator needs.
type Store interface {
	store.DockStore
	store.AssignmentStore
}

// Allocator performs atomic assign and release operations on docks.
type Allocator struct {
	store Store
	now   func() time.Time
	newID func() string
	log   logger.Logger
}

// Option customizes an Allocator.
type Option func(*Allocator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(a *Allocator) { a.now = now } }

// WithIDs overrides the assignment record id generator.
func WithIDs(f func() string) Option { return func(a *Allocator) { a.newID = f } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(a *Allocator) { a.log = logger.OrNop(l) } }

// New returns an Allocator backed by s.
func New(s Store, opts ...Option) *Allocator {
	a := &Allocator{store: s, now: time.Now, newID: uuid.NewString, log: logger.Nop{}}
	for _, o := range opts {
		o(a)
	}
	return a
}

// TryAssign occupies dockID with truckID if, and only if, the dock is
// available. The returned bool is false when another truck holds the dock;
// a truck already docked elsewhere yields an ErrResourceUnavailable error.
func (a *Allocator) TryAssign(ctx context.Context, dockID, truckID, appointmentID string) (model.AssignmentRecord, bool, error) {
	rec, ok, err := a.store.AssignDock(ctx, store.AssignRequest{
		RecordID:      a.newID(),
		DockID:        dockID,
		TruckID:       truckID,
		AppointmentID: appointmentID,
		At:            a.now().UTC(),
	})
	if err != nil {
		return model.AssignmentRecord{}, false, err
	}
	if ok {
		a.log.Debugw("dock occupied", map[string]any{"dockId": dockID, "truckId": truckID, "appointmentId": appointmentID})
	}
	return rec, ok, nil
}

// Release frees the dock. Releasing an available dock is a no-op.
func (a *Allocator) Release(ctx context.Context, dockID string) (bool, error) {
	return a.ReleaseTruck(ctx, dockID, "")
}

// ReleaseTruck frees the dock only while truckID still holds it, so a late
// release for a previous occupant cannot evict the current one. An empty
// truckID releases whoever is there.
func (a *Allocator) ReleaseTruck(ctx context.Context, dockID, truckID string) (bool, error) {
	ok, err := a.store.ReleaseDock(ctx, dockID, truckID)
	if err != nil {
		return false, err
	}
	if ok {
		a.log.Debugw("dock released", map[string]any{"dockId": dockID, "truckId": truckID})
	}
	return ok, nil
}

// Rollback undoes a TryAssign whose follow-up steps failed: the dock is
// released and the audit record removed.
func (a *Allocator) Rollback(ctx context.Context, rec model.AssignmentRecord) error {
	if _, err := a.store.ReleaseDock(ctx, rec.DockID, rec.TruckID); err != nil {
		return fmt.Errorf("rollback release %s: %w", rec.DockID, err)
	}
	if err := a.store.DeleteAssignment(ctx, rec.ID); err != nil {
		return fmt.Errorf("rollback record %s: %w", rec.ID, err)
	}
	a.log.Warnf("rolled back assignment of %s to %s", rec.TruckID, rec.DockID)
	return nil
}

// FindOneAvailable returns the first available dock of type t. It does not
// reserve the dock.
func (a *Allocator) FindOneAvailable(ctx context.Context, t model.DockType) (model.Dock, bool, error) {
	docks, err := a.store.ListDocks(ctx, store.DockFilter{Type: t, Status: model.DockAvailable})
	if err != nil {
		return model.Dock{}, false, err
	}
	if len(docks) == 0 {
		return model.Dock{}, false, nil
	}
	return docks[0], true, nil
}

// Available snapshots every available dock.
func (a *Allocator) Available(ctx context.Context) ([]model.Dock, error) {
	return a.store.ListDocks(ctx, store.DockFilter{Status: model.DockAvailable})
}

// List returns all docks ordered by id.
func (a *Allocator) List(ctx context.Context) ([]model.Dock, error) {
	return a.store.ListDocks(ctx, store.DockFilter{})
}

// Get returns one dock.
func (a *Allocator) Get(ctx context.Context, id string) (model.Dock, error) {
	return a.store.GetDock(ctx, id)
}

// Provision tops up the pool so that each type has at least the requested
// number of docks. Existing docks are never touched; new docks take the next
// free D<n> id. It returns the docks created.
func (a *Allocator) Provision(ctx context.Context, counts map[model.DockType]int) ([]model.Dock, error) {
	existing, err := a.store.ListDocks(ctx, store.DockFilter{})
	if err != nil {
		return nil, err
	}
	have := make(map[model.DockType]int, len(model.DockTypes))
	next := 1
	for _, d := range existing {
		have[d.Type]++
		if n, err := strconv.Atoi(strings.TrimPrefix(d.ID, "D")); err == nil && n >= next {
			next = n + 1
		}
	}
	var created []model.Dock
	for _, t := range model.DockTypes {
		for i := have[t]; i < counts[t]; i++ {
			d := model.Dock{ID: "D" + strconv.Itoa(next), Type: t, Status: model.DockAvailable}
			if err := a.store.InsertDock(ctx, d); err != nil {
				return created, err
			}
			next++
			created = append(created, d)
		}
	}
	if len(created) > 0 {
		a.log.Infof("provisioned %d docks", len(created))
	}
	return created, nil
}
