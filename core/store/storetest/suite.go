// Package storetest holds the behaviour every store.Store backend must show.
// Backends call Run from their own tests with a constructor returning a fresh,
// empty store.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/core/store"
)

// Factory builds an empty store for one subtest.
type Factory func(t *testing.T) store.Store

var base = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

// Run executes the conformance suite.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"DockRoundTrip", testDockRoundTrip},
		{"AssignDockCAS", testAssignDockCAS},
		{"AssignDockConcurrent", testAssignDockConcurrent},
		{"TruckHoldsOneDock", testTruckHoldsOneDock},
		{"TruckHoldsOneDockConcurrent", testTruckHoldsOneDockConcurrent},
		{"ReleaseDockIdempotent", testReleaseDockIdempotent},
		{"ReleaseDockScopedToTruck", testReleaseDockScopedToTruck},
		{"AppointmentCAS", testAppointmentCAS},
		{"AppointmentFilter", testAppointmentFilter},
		{"QueueUpsertAndOrder", testQueueUpsertAndOrder},
		{"AssignmentsCloseAndLimit", testAssignmentsCloseAndLimit},
		{"NotFound", testNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

func seedDocks(t *testing.T, s store.Store, docks ...model.Dock) {
	t.Helper()
	for _, d := range docks {
		if d.Status == "" {
			d.Status = model.DockAvailable
		}
		require.NoError(t, s.InsertDock(context.Background(), d))
	}
}

func testDockRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedDocks(t, s,
		model.Dock{ID: "D10", Type: model.DockPriority},
		model.Dock{ID: "D2", Type: model.DockLoading},
		model.Dock{ID: "D1", Type: model.DockLoading},
	)
	d, err := s.GetDock(ctx, "D2")
	require.NoError(t, err)
	assert.Equal(t, model.DockLoading, d.Type)
	assert.Equal(t, model.DockAvailable, d.Status)
	assert.Nil(t, d.AssignedAt)

	all, err := s.ListDocks(ctx, store.DockFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"D1", "D2", "D10"}, []string{all[0].ID, all[1].ID, all[2].ID})

	loading, err := s.ListDocks(ctx, store.DockFilter{Type: model.DockLoading})
	require.NoError(t, err)
	assert.Len(t, loading, 2)
}

func testAssignDockCAS(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedDocks(t, s, model.Dock{ID: "D1", Type: model.DockLoading})

	rec, ok, err := s.AssignDock(ctx, store.AssignRequest{RecordID: "r1", DockID: "D1", TruckID: "T1", AppointmentID: "a1", At: base})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "T1", rec.TruckID)
	assert.True(t, rec.Open())

	_, ok, err = s.AssignDock(ctx, store.AssignRequest{RecordID: "r2", DockID: "D1", TruckID: "T2", AppointmentID: "a2", At: base})
	require.NoError(t, err)
	assert.False(t, ok)

	d, err := s.GetDock(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, model.DockOccupied, d.Status)
	assert.Equal(t, "T1", d.CurrentTruckID)
	require.NotNil(t, d.AssignedAt)
	assert.True(t, d.AssignedAt.Equal(base))
	assert.True(t, d.Consistent())

	recs, err := s.ListAssignments(ctx, store.AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "r1", recs[0].ID)
}

func testAssignDockConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedDocks(t, s, model.Dock{ID: "D1", Type: model.DockLoading})

	const n = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok, err := s.AssignDock(ctx, store.AssignRequest{
				RecordID:      fmt.Sprintf("r%d", i),
				DockID:        "D1",
				TruckID:       fmt.Sprintf("T%d", i),
				AppointmentID: fmt.Sprintf("a%d", i),
				At:            base,
			})
			if err != nil {
				errs <- err
				return
			}
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("assign: %v", err)
	}
	assert.EqualValues(t, 1, wins.Load())
	recs, err := s.ListAssignments(ctx, store.AssignmentFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func testTruckHoldsOneDock(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedDocks(t, s,
		model.Dock{ID: "D1", Type: model.DockLoading},
		model.Dock{ID: "D2", Type: model.DockLoading},
	)
	_, ok, err := s.AssignDock(ctx, store.AssignRequest{RecordID: "r1", DockID: "D1", TruckID: "T1", AppointmentID: "a1", At: base})
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = s.AssignDock(ctx, store.AssignRequest{RecordID: "r2", DockID: "D2", TruckID: "T1", AppointmentID: "a2", At: base})
	require.ErrorIs(t, err, model.ErrResourceUnavailable)
	assert.False(t, ok)

	d, err := s.GetDock(ctx, "D2")
	require.NoError(t, err)
	assert.Equal(t, model.DockAvailable, d.Status)
	assert.Empty(t, d.CurrentTruckID)
	recs, err := s.ListAssignments(ctx, store.AssignmentFilter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	released, err := s.ReleaseDock(ctx, "D1", "T1")
	require.NoError(t, err)
	require.True(t, released)
	_, ok, err = s.AssignDock(ctx, store.AssignRequest{RecordID: "r3", DockID: "D2", TruckID: "T1", AppointmentID: "a2", At: base})
	require.NoError(t, err)
	assert.True(t, ok)

	// a freed dock no longer counts against its previous truck
	_, ok, err = s.AssignDock(ctx, store.AssignRequest{RecordID: "r4", DockID: "D1", TruckID: "T2", AppointmentID: "a4", At: base})
	require.NoError(t, err)
	assert.True(t, ok)
}

func testTruckHoldsOneDockConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()
	const n = 8
	for i := 1; i <= n; i++ {
		seedDocks(t, s, model.Dock{ID: fmt.Sprintf("D%d", i), Type: model.DockLoading})
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok, err := s.AssignDock(ctx, store.AssignRequest{
				RecordID:      fmt.Sprintf("r%d", i),
				DockID:        fmt.Sprintf("D%d", i),
				TruckID:       "T1",
				AppointmentID: fmt.Sprintf("a%d", i),
				At:            base,
			})
			switch {
			case err == nil && ok:
				wins.Add(1)
			case err != nil && !errors.Is(err, model.ErrResourceUnavailable):
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("assign: %v", err)
	}
	assert.EqualValues(t, 1, wins.Load())

	docks, err := s.ListDocks(ctx, store.DockFilter{Status: model.DockOccupied})
	require.NoError(t, err)
	require.Len(t, docks, 1)
	assert.Equal(t, "T1", docks[0].CurrentTruckID)
}

func testReleaseDockIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedDocks(t, s, model.Dock{ID: "D1", Type: model.DockUnloading})
	_, ok, err := s.AssignDock(ctx, store.AssignRequest{RecordID: "r1", DockID: "D1", TruckID: "T1", AppointmentID: "a1", At: base})
	require.NoError(t, err)
	require.True(t, ok)

	released, err := s.ReleaseDock(ctx, "D1", "")
	require.NoError(t, err)
	assert.True(t, released)
	released, err = s.ReleaseDock(ctx, "D1", "")
	require.NoError(t, err)
	assert.False(t, released)

	d, err := s.GetDock(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, model.DockAvailable, d.Status)
	assert.Empty(t, d.CurrentTruckID)
	assert.Nil(t, d.AssignedAt)
}

func testReleaseDockScopedToTruck(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedDocks(t, s, model.Dock{ID: "D1", Type: model.DockLoading})
	_, ok, err := s.AssignDock(ctx, store.AssignRequest{RecordID: "r1", DockID: "D1", TruckID: "T1", AppointmentID: "a1", At: base})
	require.NoError(t, err)
	require.True(t, ok)

	released, err := s.ReleaseDock(ctx, "D1", "T2")
	require.NoError(t, err)
	assert.False(t, released)
	d, err := s.GetDock(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, "T1", d.CurrentTruckID)

	released, err = s.ReleaseDock(ctx, "D1", "T1")
	require.NoError(t, err)
	assert.True(t, released)
}

func appointment(id, truck string, at time.Time) model.Appointment {
	return model.Appointment{
		ID:            id,
		TruckID:       truck,
		Supplier:      "Acme",
		ScheduledTime: at,
		Status:        model.StatusBooked,
		Type:          model.AppointmentLoading,
	}
}

func testAppointmentCAS(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := appointment("a1", "T1", base)
	require.NoError(t, s.InsertAppointment(ctx, a))

	arrived := a
	arrived.Apply(model.StatusArrived, base.Add(time.Minute))
	ok, err := s.UpdateAppointment(ctx, arrived, model.StatusBooked)
	require.NoError(t, err)
	assert.True(t, ok)

	stale := a
	stale.Apply(model.StatusArrived, base.Add(2*time.Minute))
	ok, err = s.UpdateAppointment(ctx, stale, model.StatusBooked)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetAppointment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusArrived, got.Status)
	require.NotNil(t, got.ActualArrivalTime)
	assert.True(t, got.ActualArrivalTime.Equal(base.Add(time.Minute)))
	assert.Nil(t, got.DepartureTime)
	assert.True(t, got.ScheduledTime.Equal(base))
	assert.Equal(t, "Acme", got.Supplier)
}

func testAppointmentFilter(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertAppointment(ctx, appointment("a2", "T1", base.Add(time.Hour))))
	require.NoError(t, s.InsertAppointment(ctx, appointment("a1", "T1", base)))
	require.NoError(t, s.InsertAppointment(ctx, appointment("a3", "T2", base)))

	all, err := s.ListAppointments(ctx, store.AppointmentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	t1, err := s.ListAppointments(ctx, store.AppointmentFilter{TruckID: "T1"})
	require.NoError(t, err)
	require.Len(t, t1, 2)
	assert.Equal(t, "a1", t1[0].ID)
	assert.Equal(t, "a2", t1[1].ID)
}

func testQueueUpsertAndOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	e1, err := s.UpsertQueueEntry(ctx, model.QueueEntry{ID: "q1", TruckID: "T1", AppointmentID: "a1", ArrivalTime: base.Add(time.Hour), Type: model.AppointmentLoading})
	require.NoError(t, err)
	assert.Equal(t, "q1", e1.ID)
	_, err = s.UpsertQueueEntry(ctx, model.QueueEntry{ID: "q2", TruckID: "T2", AppointmentID: "a2", ArrivalTime: base.Add(30 * time.Minute), Type: model.AppointmentUnloading})
	require.NoError(t, err)

	// re-entry for the same appointment keeps the original id
	again, err := s.UpsertQueueEntry(ctx, model.QueueEntry{ID: "q3", TruckID: "T1", AppointmentID: "a1", ArrivalTime: base, Type: model.AppointmentLoading})
	require.NoError(t, err)
	assert.Equal(t, "q1", again.ID)
	assert.True(t, again.ArrivalTime.Equal(base))

	entries, err := s.ListQueueEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "q1", entries[0].ID)
	assert.Equal(t, "q2", entries[1].ID)
	assert.Equal(t, model.AppointmentUnloading, entries[1].Type)

	removed, err := s.DeleteQueueEntry(ctx, "q1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.DeleteQueueEntry(ctx, "q1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func testAssignmentsCloseAndLimit(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedDocks(t, s,
		model.Dock{ID: "D1", Type: model.DockLoading},
		model.Dock{ID: "D2", Type: model.DockLoading},
		model.Dock{ID: "D3", Type: model.DockLoading},
		model.Dock{ID: "D4", Type: model.DockLoading},
	)
	for i := 1; i <= 4; i++ {
		_, ok, err := s.AssignDock(ctx, store.AssignRequest{
			RecordID:      fmt.Sprintf("r%d", i),
			DockID:        fmt.Sprintf("D%d", i),
			TruckID:       fmt.Sprintf("T%d", i),
			AppointmentID: fmt.Sprintf("a%d", i),
			At:            base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		require.True(t, ok)
	}
	recent, err := s.ListAssignments(ctx, store.AssignmentFilter{Limit: 3})
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"r4", "r3", "r2"}, []string{recent[0].ID, recent[1].ID, recent[2].ID})

	n, err := s.CloseAssignments(ctx, "a2", base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.CloseAssignments(ctx, "a2", base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	open, err := s.ListAssignments(ctx, store.AssignmentFilter{OpenOnly: true})
	require.NoError(t, err)
	assert.Len(t, open, 3)

	closed, err := s.ListAssignments(ctx, store.AssignmentFilter{AppointmentID: "a2"})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	require.NotNil(t, closed[0].DepartedAt)
	assert.True(t, closed[0].DepartedAt.Equal(base.Add(time.Hour)))

	require.NoError(t, s.DeleteAssignment(ctx, "r1"))
	all, err := s.ListAssignments(ctx, store.AssignmentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func testNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.GetDock(ctx, "nope")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	_, err = s.GetAppointment(ctx, "nope")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	_, _, err = s.AssignDock(ctx, store.AssignRequest{RecordID: "r", DockID: "nope", TruckID: "T", AppointmentID: "a", At: base})
	assert.True(t, errors.Is(err, model.ErrNotFound))
	_, err = s.ReleaseDock(ctx, "nope", "")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	_, err = s.UpdateAppointment(ctx, appointment("nope", "T", base), model.StatusBooked)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
