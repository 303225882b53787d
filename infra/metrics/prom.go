package metrics

import (
	coremetrics "github.com/kilianp07/dockyard/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records dock activity in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	wait        *prometheus.HistogramVec
	hold        *prometheus.HistogramVec
	statuses    *prometheus.CounterVec
}

var waitBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600}

// NewPromSink registers dock metrics on the default Prometheus registerer.
// The metrics are served by the API /metrics endpoint.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dockyard_dock_assignments_total",
		Help: "Trucks placed on a dock, by dock type and assignment path",
	}, []string{"dock_type", "path"})
	wait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dockyard_truck_wait_seconds",
		Help:    "Time between truck arrival and dock assignment",
		Buckets: waitBuckets,
	}, []string{"dock_type"})
	hold := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dockyard_dock_hold_seconds",
		Help:    "Time a dock stayed occupied, by release reason",
		Buckets: waitBuckets,
	}, []string{"reason"})
	statuses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dockyard_appointment_transitions_total",
		Help: "Appointment status changes by target status",
	}, []string{"status"})

	var err error
	if assignments, err = registerOrExisting(reg, assignments); err != nil {
		return nil, err
	}
	if wait, err = registerOrExisting(reg, wait); err != nil {
		return nil, err
	}
	if hold, err = registerOrExisting(reg, hold); err != nil {
		return nil, err
	}
	if statuses, err = registerOrExisting(reg, statuses); err != nil {
		return nil, err
	}
	return &PromSink{assignments: assignments, wait: wait, hold: hold, statuses: statuses}, nil
}

func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAssignment counts the assignment and observes the truck's wait.
func (s *PromSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	s.assignments.WithLabelValues(string(ev.DockType), ev.Path).Inc()
	s.wait.WithLabelValues(string(ev.DockType)).Observe(ev.Wait.Seconds())
	return nil
}

// RecordRelease observes how long the dock was held.
func (s *PromSink) RecordRelease(ev coremetrics.ReleaseEvent) error {
	s.hold.WithLabelValues(ev.Reason).Observe(ev.Hold.Seconds())
	return nil
}

// RecordStatus counts the transition.
func (s *PromSink) RecordStatus(ev coremetrics.StatusEvent) error {
	s.statuses.WithLabelValues(string(ev.Status)).Inc()
	return nil
}
