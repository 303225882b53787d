package scenarios

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/dockyard/core/allocator"
	"github.com/kilianp07/dockyard/core/dispatch"
	"github.com/kilianp07/dockyard/core/factory"
	"github.com/kilianp07/dockyard/core/lifecycle"
	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/core/queue"
	"github.com/kilianp07/dockyard/infra/metrics"
	"github.com/kilianp07/dockyard/infra/store/memory"
)

var errorKinds = map[string]error{
	"not_found":          model.ErrNotFound,
	"unavailable":        model.ErrResourceUnavailable,
	"invalid_transition": model.ErrInvalidTransition,
	"invalid_request":    model.ErrInvalidRequest,
}

type runner struct {
	sched *dispatch.Scheduler
	appts map[string]string
}

// RunScenario replays sc against a fresh in-memory facility with a FIFO
// selector and a one hour hold, so no timer fires during the run.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	st := memory.New()
	alloc := allocator.New(st)
	if _, err := alloc.Provision(ctx, sc.Docks.Counts()); err != nil {
		t.Fatalf("provision: %v", err)
	}
	sched, err := dispatch.New(dispatch.Config{
		Hold:          time.Hour,
		SweepInterval: time.Hour,
		Policy:        factory.ModuleConfig{Type: dispatch.PolicyFIFO},
	}, alloc, lifecycle.New(st), queue.New(st), st, dispatch.WithMetricsSink(sink))
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	defer sched.Close()

	r := &runner{sched: sched, appts: map[string]string{}}
	for i, step := range sc.Steps {
		err := r.apply(ctx, step)
		if step.Expect == "" {
			if err != nil {
				t.Fatalf("step %d (%s %s): %v", i, step.Op, step.Truck, err)
			}
			continue
		}
		if !errors.Is(err, errorKinds[step.Expect]) {
			t.Fatalf("step %d (%s %s): want %s, got %v", i, step.Op, step.Truck, step.Expect, err)
		}
	}
	r.check(t, ctx, reg, sc.Expected)
}

func (r *runner) apply(ctx context.Context, s Step) error {
	id := r.appts[s.Truck]
	if id == "" && s.Op != "book" && s.Op != "sweep" {
		id = "unknown-" + s.Truck
	}
	switch s.Op {
	case "book":
		a, _, err := r.sched.Book(ctx, lifecycle.BookRequest{
			TruckID: s.Truck, Supplier: "scenario", RequestedTime: time.Now(), Type: model.AppointmentType(s.Type),
		})
		if err == nil {
			r.appts[s.Truck] = a.ID
		}
		return err
	case "arrive":
		_, err := r.sched.Arrive(ctx, s.Truck, id)
		return err
	case "assign":
		_, err := r.sched.Assign(ctx, s.Truck, s.Dock, id)
		return err
	case "sweep":
		_, _, err := r.sched.Sweep(ctx)
		return err
	case "status":
		_, err := r.sched.UpdateStatus(ctx, id, model.AppointmentStatus(s.Status))
		return err
	case "force_complete":
		_, err := r.sched.ForceComplete(ctx, id)
		return err
	case "depart":
		_, err := r.sched.Depart(ctx, s.Truck, id)
		return err
	}
	return fmt.Errorf("unknown op %q", s.Op)
}

func (r *runner) check(t *testing.T, ctx context.Context, reg *prometheus.Registry, exp Expected) {
	t.Helper()
	if got := assignmentCount(t, reg); got != exp.Assignments {
		t.Errorf("expected %d assignments, got %d", exp.Assignments, got)
	}
	q, err := r.sched.TruckQueue(ctx)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if len(q) != exp.Queued {
		t.Errorf("expected %d queued, got %d", exp.Queued, len(q))
	}
	docks, err := r.sched.Docks(ctx)
	if err != nil {
		t.Fatalf("docks: %v", err)
	}
	occupied := map[string]string{}
	holder := map[string]string{}
	for _, d := range docks {
		if !d.Consistent() {
			t.Errorf("dock %s inconsistent: %+v", d.ID, d)
		}
		if d.Occupied() {
			occupied[d.ID] = d.CurrentTruckID
			if prev, ok := holder[d.CurrentTruckID]; ok {
				t.Errorf("truck %s holds %s and %s", d.CurrentTruckID, prev, d.ID)
			}
			holder[d.CurrentTruckID] = d.ID
		}
	}
	for dock, truck := range exp.Occupied {
		if occupied[dock] != truck {
			t.Errorf("dock %s: expected %q, got %q", dock, truck, occupied[dock])
		}
	}
	if exp.Occupied != nil && len(occupied) != len(exp.Occupied) {
		t.Errorf("expected %d occupied docks, got %v", len(exp.Occupied), occupied)
	}
	for truck, want := range exp.Statuses {
		a, err := r.sched.Appointment(ctx, r.appts[truck])
		if err != nil {
			t.Fatalf("appointment of %s: %v", truck, err)
		}
		if a.Status != want {
			t.Errorf("truck %s: expected %s, got %s", truck, want, a.Status)
		}
	}
}

func assignmentCount(t *testing.T, reg *prometheus.Registry) int {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	n := 0.0
	for _, f := range families {
		if f.GetName() != "dockyard_dock_assignments_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			n += m.GetCounter().GetValue()
		}
	}
	return int(n)
}
