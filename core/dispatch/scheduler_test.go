package dispatch

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

	"github.com/kilianp07/dockyard/core/allocator"
	"github.com/kilianp07/dockyard/core/events"
	"github.com/kilianp07/dockyard/core/factory"
	"github.com/kilianp07/dockyard/core/lifecycle"
	"github.com/kilianp07/dockyard/core/metrics"
	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/core/queue"
	"github.com/kilianp07/dockyard/core/store"
	"github.com/kilianp07/dockyard/infra/store/memory"
)

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	r.evs = append(r.evs, e)
	r.mu.Unlock()
}

func (r *recorder) kinds(k events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.evs {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

type sinkRecorder struct {
	mu       sync.Mutex
	assigned []metrics.AssignmentEvent
	released []metrics.ReleaseEvent
	sweeps   []metrics.SweepEvent
}

func (s *sinkRecorder) RecordAssignment(ev metrics.AssignmentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assigned = append(s.assigned, ev)
	return nil
}

func (s *sinkRecorder) RecordRelease(ev metrics.ReleaseEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, ev)
	return nil
}

func (s *sinkRecorder) RecordSweep(ev metrics.SweepEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweeps = append(s.sweeps, ev)
	return nil
}

type harness struct {
	*Scheduler
	st   *memory.Store
	pub  *recorder
	sink *sinkRecorder
}

var defaultDocks = map[model.DockType]int{model.DockLoading: 1, model.DockUnloading: 1}

func newHarness(t *testing.T, hold time.Duration, docks map[model.DockType]int, opts ...Option) *harness {
	t.Helper()
	return newHarnessOn(t, memory.New(), hold, docks, opts...)
}

func newHarnessOn(t *testing.T, st *memory.Store, hold time.Duration, docks map[model.DockType]int, opts ...Option) *harness {
	t.Helper()
	var n atomic.Int64
	ids := func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
	h := &harness{st: st, pub: &recorder{}, sink: &sinkRecorder{}}

	alloc := allocator.New(st, allocator.WithIDs(func() string { return "rec-" + ids() }))
	_, err := alloc.Provision(context.Background(), docks)
	require.NoError(t, err)
	life := lifecycle.New(st, lifecycle.WithIDs(func() string { return "appt-" + ids() }), lifecycle.WithPublisher(h.pub))
	q := queue.New(st, queue.WithIDs(func() string { return "q-" + ids() }), queue.WithPublisher(h.pub))

	cfg := Config{Hold: hold, SweepInterval: time.Hour, Policy: factory.ModuleConfig{Type: PolicyFIFO}}
	opts = append([]Option{WithPublisher(h.pub), WithMetricsSink(h.sink)}, opts...)
	s, err := New(cfg, alloc, life, q, st, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	h.Scheduler = s
	return h
}

func (h *harness) book(t *testing.T, truck string, typ model.AppointmentType) model.Appointment {
	t.Helper()
	a, _, err := h.Book(context.Background(), lifecycle.BookRequest{
		TruckID: truck, Supplier: "ACME", RequestedTime: time.Now().Add(time.Hour), Type: typ,
	})
	require.NoError(t, err)
	return a
}

func (h *harness) arrive(t *testing.T, truck string, typ model.AppointmentType) model.Appointment {
	t.Helper()
	a := h.book(t, truck, typ)
	a, err := h.Arrive(context.Background(), truck, a.ID)
	require.NoError(t, err)
	return a
}

func (h *harness) dock(t *testing.T, id string) model.Dock {
	t.Helper()
	d, err := h.st.GetDock(context.Background(), id)
	require.NoError(t, err)
	return d
}

func (h *harness) appt(t *testing.T, id string) model.Appointment {
	t.Helper()
	a, err := h.st.GetAppointment(context.Background(), id)
	require.NoError(t, err)
	return a
}

func (h *harness) queued(t *testing.T) []model.QueueEntry {
	t.Helper()
	q, err := h.TruckQueue(context.Background())
	require.NoError(t, err)
	return q
}

func TestScenarioManualAssign(t *testing.T) {
	h := newHarness(t, time.Hour, defaultDocks)
	ctx := context.Background()

	a := h.book(t, "T1", model.AppointmentLoading)
	require.Len(t, h.queued(t), 1)

	a, err := h.Arrive(ctx, "T1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArrived, a.Status)
	require.Len(t, h.queued(t), 1)

	rec, err := h.Assign(ctx, "T1", "D1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "D1", rec.DockID)

	d := h.dock(t, "D1")
	assert.Equal(t, model.DockOccupied, d.Status)
	assert.Equal(t, "T1", d.CurrentTruckID)
	assert.Empty(t, h.queued(t))

	got := h.appt(t, a.ID)
	assert.Equal(t, model.StatusAssigned, got.Status)
	assert.Equal(t, "D1", got.DockID)
	assert.Equal(t, []string{a.ID}, h.PendingReleases())

	require.Len(t, h.pub.kinds(events.KindDockAssigned), 1)
	require.Len(t, h.sink.assigned, 1)
	assert.Equal(t, metrics.PathManual, h.sink.assigned[0].Path)
}

func TestScenarioSweepWithoutDocks(t *testing.T) {
	h := newHarness(t, time.Hour, map[model.DockType]int{model.DockLoading: 1})
	ctx := context.Background()

	a1 := h.arrive(t, "T1", model.AppointmentLoading)
	_, err := h.Assign(ctx, "T1", "D1", a1.ID)
	require.NoError(t, err)
	h.arrive(t, "T2", model.AppointmentLoading)
	before := h.queued(t)
	require.Len(t, before, 1)

	_, assigned, err := h.Sweep(ctx)
	require.NoError(t, err)
	assert.False(t, assigned)
	assert.Equal(t, before, h.queued(t))
	assert.Equal(t, "T1", h.dock(t, "D1").CurrentTruckID)
}

func TestScenarioHoldReleasesDock(t *testing.T) {
	h := newHarness(t, 30*time.Millisecond, defaultDocks)
	ctx := context.Background()

	a := h.arrive(t, "T1", model.AppointmentLoading)
	rec, err := h.Assign(ctx, "T1", "D1", a.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.appt(t, a.ID).Status == model.StatusDeparted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, model.DockAvailable, h.dock(t, "D1").Status)
	recs, err := h.st.ListAssignments(ctx, store.AssignmentFilter{AppointmentID: a.ID})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rec.ID, recs[0].ID)
	assert.NotNil(t, recs[0].DepartedAt)
	assert.Empty(t, h.PendingReleases())

	released := h.pub.kinds(events.KindDockReleased)
	require.Len(t, released, 1)
	assert.Equal(t, events.ReasonTimer, released[0].Reason)
}

func TestScenarioOccupiedDockRejected(t *testing.T) {
	h := newHarness(t, time.Hour, defaultDocks)
	ctx := context.Background()

	a1 := h.arrive(t, "T1", model.AppointmentLoading)
	_, err := h.Assign(ctx, "T1", "D1", a1.ID)
	require.NoError(t, err)
	a2 := h.arrive(t, "T2", model.AppointmentLoading)
	queueBefore := h.queued(t)
	dockBefore := h.dock(t, "D1")

	_, err = h.Assign(ctx, "T2", "D1", a2.ID)
	require.ErrorIs(t, err, model.ErrResourceUnavailable)

	assert.Equal(t, queueBefore, h.queued(t))
	assert.Equal(t, dockBefore, h.dock(t, "D1"))
	assert.Equal(t, model.StatusArrived, h.appt(t, a2.ID).Status)
	recs, err := h.RecentAssignments(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSweepAssignsCompatibleDock(t *testing.T) {
	h := newHarness(t, time.Hour, defaultDocks)
	ctx := context.Background()

	a := h.arrive(t, "T1", model.AppointmentUnloading)
	rec, assigned, err := h.Sweep(ctx)
	require.NoError(t, err)
	require.True(t, assigned)
	assert.Equal(t, "D2", rec.DockID)
	assert.Equal(t, model.StatusAssigned, h.appt(t, a.ID).Status)
	assert.Empty(t, h.queued(t))

	require.Len(t, h.sink.assigned, 1)
	assert.Equal(t, metrics.PathAuto, h.sink.assigned[0].Path)
	require.NotEmpty(t, h.sink.sweeps)
	assert.True(t, h.sink.sweeps[len(h.sink.sweeps)-1].Assigned)
}

func TestSweepSkipsIncompatibleQueue(t *testing.T) {
	h := newHarness(t, time.Hour, map[model.DockType]int{model.DockLoading: 1})
	h.arrive(t, "T1", model.AppointmentUnloading)

	_, assigned, err := h.Sweep(context.Background())
	require.NoError(t, err)
	assert.False(t, assigned)
	assert.Len(t, h.queued(t), 1)
}

func TestTruckHoldsOneDockManual(t *testing.T) {
	h := newHarness(t, time.Hour, map[model.DockType]int{model.DockLoading: 2})
	ctx := context.Background()
	first := h.arrive(t, "T1", model.AppointmentLoading)
	second := h.arrive(t, "T1", model.AppointmentLoading)

	_, err := h.Assign(ctx, "T1", "D1", first.ID)
	require.NoError(t, err)

	_, err = h.Assign(ctx, "T1", "D2", second.ID)
	require.ErrorIs(t, err, model.ErrResourceUnavailable)
	assert.Contains(t, err.Error(), "already holds a dock")
	assert.Equal(t, model.DockAvailable, h.dock(t, "D2").Status)
	assert.Equal(t, model.StatusArrived, h.appt(t, second.ID).Status)
	q := h.queued(t)
	require.Len(t, q, 1)
	assert.Equal(t, second.ID, q[0].AppointmentID)

	_, err = h.ForceComplete(ctx, first.ID)
	require.NoError(t, err)
	_, err = h.Assign(ctx, "T1", "D2", second.ID)
	require.NoError(t, err)
	assert.Equal(t, "T1", h.dock(t, "D2").CurrentTruckID)
	assert.Equal(t, model.DockAvailable, h.dock(t, "D1").Status)
}

func TestSweepSkipsDockedTruck(t *testing.T) {
	h := newHarness(t, time.Hour, map[model.DockType]int{model.DockLoading: 2})
	ctx := context.Background()
	first := h.arrive(t, "T1", model.AppointmentLoading)
	second := h.arrive(t, "T1", model.AppointmentLoading)
	other := h.arrive(t, "T2", model.AppointmentLoading)

	rec, assigned, err := h.Sweep(ctx)
	require.NoError(t, err)
	require.True(t, assigned)
	assert.Equal(t, first.ID, rec.AppointmentID)

	rec, assigned, err = h.Sweep(ctx)
	require.NoError(t, err)
	require.True(t, assigned)
	assert.Equal(t, other.ID, rec.AppointmentID)
	assert.Equal(t, "T2", rec.TruckID)

	_, assigned, err = h.Sweep(ctx)
	require.NoError(t, err)
	assert.False(t, assigned)

	docks, err := h.Docks(ctx)
	require.NoError(t, err)
	holders := map[string]int{}
	for _, d := range docks {
		if d.Status == model.DockOccupied {
			holders[d.CurrentTruckID]++
		}
	}
	assert.Equal(t, map[string]int{"T1": 1, "T2": 1}, holders)
	q := h.queued(t)
	require.Len(t, q, 1)
	assert.Equal(t, second.ID, q[0].AppointmentID)
}

func TestSweepDropsStaleEntry(t *testing.T) {
	h := newHarness(t, time.Hour, defaultDocks)
	ctx := context.Background()
	a := h.arrive(t, "T1", model.AppointmentLoading)
	_, err := h.Assign(ctx, "T1", "D1", a.ID)
	require.NoError(t, err)
	_, err = h.ForceComplete(ctx, a.ID)
	require.NoError(t, err)

	// an entry left behind for an appointment that already had its dock
	_, err = h.st.UpsertQueueEntry(ctx, model.QueueEntry{
		ID: "q-stale", TruckID: "T1", ArrivalTime: time.Now(), AppointmentID: a.ID, Type: model.AppointmentLoading,
	})
	require.NoError(t, err)

	_, assigned, err := h.Sweep(ctx)
	require.ErrorIs(t, err, model.ErrInvalidTransition)
	assert.False(t, assigned)
	assert.Empty(t, h.queued(t))
	assert.Equal(t, model.DockAvailable, h.dock(t, "D1").Status)
	assert.Equal(t, model.StatusCompleted, h.appt(t, a.ID).Status)

	_, assigned, err = h.Sweep(ctx)
	require.NoError(t, err)
	assert.False(t, assigned)
}

func TestAssignBookedAppointment(t *testing.T) {
	h := newHarness(t, time.Hour, defaultDocks)
	a := h.book(t, "T1", model.AppointmentLoading)

	_, err := h.Assign(context.Background(), "T1", "D1", a.ID)
	require.NoError(t, err)
	got := h.appt(t, a.ID)
	assert.Equal(t, model.StatusAssigned, got.Status)
	assert.NotNil(t, got.ActualArrivalTime)
	assert.Empty(t, h.queued(t))
}

func TestAssignRejections(t *testing.T) {
	h := newHarness(t, time.Hour, map[model.DockType]int{model.DockLoading: 2, model.DockUnloading: 1})
	ctx := context.Background()
	a := h.arrive(t, "T1", model.AppointmentUnloading)

	_, err := h.Assign(ctx, "T1", "D1", a.ID)
	require.ErrorIs(t, err, model.ErrResourceUnavailable, "type mismatch")
	assert.Equal(t, model.DockAvailable, h.dock(t, "D1").Status)

	_, err = h.Assign(ctx, "T9", "D3", a.ID)
	require.ErrorIs(t, err, model.ErrInvalidRequest, "truck mismatch")

	_, err = h.Assign(ctx, "T1", "D404", a.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	_, err = h.Assign(ctx, "T1", "D3", "missing")
	require.ErrorIs(t, err, model.ErrNotFound)

	_, err = h.Assign(ctx, "T1", "", a.ID)
	require.ErrorIs(t, err, model.ErrInvalidRequest)

	_, err = h.Assign(ctx, "T1", "D3", a.ID)
	require.NoError(t, err)
	_, err = h.Assign(ctx, "T1", "D3", a.ID)
	require.ErrorIs(t, err, model.ErrInvalidTransition, "already assigned")
}

func TestManualAssignRacesSweep(t *testing.T) {
	for i := 0; i < 25; i++ {
		h := newHarness(t, time.Hour, map[model.DockType]int{model.DockLoading: 1})
		ctx := context.Background()
		a2 := h.arrive(t, "T2", model.AppointmentLoading)
		a1 := h.arrive(t, "T1", model.AppointmentLoading)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = h.Assign(ctx, "T1", "D1", a1.ID)
		}()
		go func() {
			defer wg.Done()
			_, _, _ = h.Sweep(ctx)
		}()
		wg.Wait()

		recs, err := h.RecentAssignments(ctx, 10)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		d := h.dock(t, "D1")
		assert.Equal(t, recs[0].TruckID, d.CurrentTruckID)
		assert.True(t, d.Consistent())

		assigned := 0
		for _, id := range []string{a1.ID, a2.ID} {
			if h.appt(t, id).Status == model.StatusAssigned {
				assigned++
			}
		}
		assert.Equal(t, 1, assigned)
		assert.Len(t, h.queued(t), 1)
	}
}

type failingQueueStore struct {
	*memory.Store
}

func (failingQueueStore) ListQueueEntries(context.Context) ([]model.QueueEntry, error) {
	return nil, model.NewStorageError("list queue", errors.New("connection reset"))
}

type panickingSelector struct{}

func (panickingSelector) Select([]model.QueueEntry, []model.Dock) (model.QueueEntry, model.Dock, bool) {
	panic("boom")
}

func TestTickSurvivesFailures(t *testing.T) {
	st := memory.New()
	alloc := allocator.New(st)
	life := lifecycle.New(st)
	s, err := New(Config{}, alloc, life, queue.New(failingQueueStore{st}), st)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, _, err = s.Sweep(context.Background())
	require.ErrorIs(t, err, model.ErrStorage)
	assert.NotPanics(t, func() { s.tick(context.Background()) })

	h := newHarness(t, time.Hour, defaultDocks, WithSelector(panickingSelector{}))
	h.arrive(t, "T1", model.AppointmentLoading)
	assert.NotPanics(t, func() { h.tick(context.Background()) })
	assert.Len(t, h.queued(t), 1)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, time.Hour, defaultDocks)
	h.cfg.SweepInterval = 5 * time.Millisecond
	a := h.arrive(t, "T1", model.AppointmentLoading)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.appt(t, a.ID).Status == model.StatusAssigned
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestForceCompleteThenDepart(t *testing.T) {
	h := newHarness(t, time.Hour, defaultDocks)
	ctx := context.Background()
	a := h.arrive(t, "T1", model.AppointmentLoading)

	_, err := h.Depart(ctx, "T1", a.ID)
	require.ErrorIs(t, err, model.ErrNotFound, "not completed yet")

	_, err = h.Assign(ctx, "T1", "D1", a.ID)
	require.NoError(t, err)

	got, err := h.ForceComplete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, model.DockAvailable, h.dock(t, "D1").Status)
	assert.Empty(t, h.PendingReleases())

	released := h.pub.kinds(events.KindDockReleased)
	require.Len(t, released, 1)
	assert.Equal(t, events.ReasonForce, released[0].Reason)

	_, err = h.ForceComplete(ctx, a.ID)
	require.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = h.Depart(ctx, "T2", a.ID)
	require.ErrorIs(t, err, model.ErrNotFound)

	got, err = h.Depart(ctx, "T1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeparted, got.Status)
	recs, err := h.st.ListAssignments(ctx, store.AssignmentFilter{AppointmentID: a.ID, OpenOnly: true})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Len(t, h.pub.kinds(events.KindDockReleased), 1)
}

func TestUpdateStatus(t *testing.T) {
	h := newHarness(t, time.Hour, defaultDocks)
	ctx := context.Background()
	a := h.book(t, "T1", model.AppointmentLoading)

	_, err := h.UpdateStatus(ctx, a.ID, model.StatusAssigned)
	require.ErrorIs(t, err, model.ErrInvalidRequest)
	_, err = h.UpdateStatus(ctx, a.ID, model.StatusLoading)
	require.ErrorIs(t, err, model.ErrInvalidTransition)
	_, err = h.UpdateStatus(ctx, "missing", model.StatusArrived)
	require.ErrorIs(t, err, model.ErrNotFound)

	got, err := h.UpdateStatus(ctx, a.ID, model.StatusArrived)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArrived, got.Status)
	q := h.queued(t)
	require.Len(t, q, 1)
	assert.Equal(t, *got.ActualArrivalTime, q[0].ArrivalTime)

	_, err = h.Assign(ctx, "T1", "D1", a.ID)
	require.NoError(t, err)
	got, err = h.UpdateStatus(ctx, a.ID, model.StatusLoading)
	require.NoError(t, err)
	assert.Equal(t, model.StatusLoading, got.Status)
	assert.NotEmpty(t, h.PendingReleases(), "loading keeps the hold timer")

	_, err = h.UpdateStatus(ctx, a.ID, model.StatusDeparted)
	require.ErrorIs(t, err, model.ErrInvalidTransition)

	got, err = h.UpdateStatus(ctx, a.ID, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, model.DockAvailable, h.dock(t, "D1").Status)
	assert.Empty(t, h.PendingReleases())

	got, err = h.UpdateStatus(ctx, a.ID, model.StatusDeparted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeparted, got.Status)
}

func TestStaleReleaseKeepsNewOccupant(t *testing.T) {
	h := newHarness(t, time.Hour, map[model.DockType]int{model.DockLoading: 1})
	ctx := context.Background()

	a1 := h.arrive(t, "T1", model.AppointmentLoading)
	old, err := h.Assign(ctx, "T1", "D1", a1.ID)
	require.NoError(t, err)
	_, err = h.ForceComplete(ctx, a1.ID)
	require.NoError(t, err)

	a2 := h.arrive(t, "T2", model.AppointmentLoading)
	_, err = h.Assign(ctx, "T2", "D1", a2.ID)
	require.NoError(t, err)

	require.NoError(t, h.expire(ctx, old))
	assert.Equal(t, "T2", h.dock(t, "D1").CurrentTruckID)
	assert.Equal(t, model.StatusAssigned, h.appt(t, a2.ID).Status)
}

func TestRecoverAfterRestart(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	first := newHarnessOn(t, st, time.Hour, defaultDocks)
	a := first.arrive(t, "T1", model.AppointmentLoading)
	_, err := first.Assign(ctx, "T1", "D1", a.ID)
	require.NoError(t, err)

	// a dock won without the appointment following, as left by a crash
	b := first.arrive(t, "T2", model.AppointmentUnloading)
	_, ok, err := st.AssignDock(ctx, store.AssignRequest{
		RecordID: "orphan", DockID: "D2", TruckID: "T2", AppointmentID: b.ID, At: time.Now(),
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, first.Close())

	second := newHarnessOn(t, st, 20*time.Millisecond, defaultDocks)
	armed, err := second.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, armed)
	assert.Equal(t, model.DockAvailable, second.dock(t, "D2").Status)

	require.Eventually(t, func() bool {
		return second.appt(t, a.ID).Status == model.StatusDeparted
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, model.DockAvailable, second.dock(t, "D1").Status)
}

func TestCloseStopsTimers(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond, defaultDocks)
	ctx := context.Background()
	a := h.arrive(t, "T1", model.AppointmentLoading)
	_, err := h.Assign(ctx, "T1", "D1", a.ID)
	require.NoError(t, err)

	require.NoError(t, h.Close())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, model.StatusAssigned, h.appt(t, a.ID).Status)
	assert.Equal(t, model.DockOccupied, h.dock(t, "D1").Status)
}

func TestStatsAndRecent(t *testing.T) {
	h := newHarness(t, time.Hour, map[model.DockType]int{model.DockLoading: 3})
	ctx := context.Background()
	for i, dock := range []string{"D1", "D2", "D3"} {
		truck := fmt.Sprintf("T%d", i+1)
		a := h.arrive(t, truck, model.AppointmentLoading)
		_, err := h.Assign(ctx, truck, dock, a.ID)
		require.NoError(t, err)
	}
	h.book(t, "T4", model.AppointmentLoading)

	recs, err := h.RecentAssignments(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	sum, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Appointments[model.StatusAssigned])
	assert.Equal(t, 1, sum.Appointments[model.StatusBooked])
	assert.Equal(t, 3, sum.Docks[model.DockOccupied])
	assert.Equal(t, 1, sum.Queued)
	assert.Equal(t, 3, sum.Wait.Count)

	list, err := h.Appointments(ctx, "T2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "T2", list[0].TruckID)
}

func TestNewRejectsUnknownPolicy(t *testing.T) {
	st := memory.New()
	_, err := New(Config{Policy: factory.ModuleConfig{Type: "lottery"}}, allocator.New(st), lifecycle.New(st), queue.New(st), st)
	require.Error(t, err)
}
