package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	sweepsTotal      *prometheus.CounterVec
	sweepDuration    prometheus.Histogram
	assignmentsTotal *prometheus.CounterVec
	releasesTotal    *prometheus.CounterVec
	queueLength      prometheus.Gauge
	availableDocks   prometheus.Gauge
	pendingReleases  prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Gauge, prometheus.Gauge, prometheus.Gauge) {
	sweeps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockyard_sweeps_total",
			Help: "Automatic sweeps by outcome (assigned, idle, rejected, error)",
		},
		[]string{"result"},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dockyard_sweep_duration_seconds",
			Help:    "Duration of one automatic sweep",
			Buckets: prometheus.DefBuckets,
		},
	)
	asn := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockyard_assignment_attempts_total",
			Help: "Assignment attempts by path and result",
		},
		[]string{"path", "result"},
	)
	rel := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockyard_releases_total",
			Help: "Dock releases by reason",
		},
		[]string{"reason"},
	)
	ql := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dockyard_queue_length",
		Help: "Trucks waiting at the last sweep",
	})
	ad := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dockyard_available_docks",
		Help: "Available docks at the last sweep",
	})
	pr := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dockyard_pending_releases",
		Help: "Armed release timers",
	})
	return sweeps, dur, asn, rel, ql, ad, pr
}

func init() {
	sweepsTotal, sweepDuration, assignmentsTotal, releasesTotal, queueLength, availableDocks, pendingReleases = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers scheduler metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(sweepsTotal, sweepDuration, assignmentsTotal, releasesTotal, queueLength, availableDocks, pendingReleases)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	sweepsTotal, sweepDuration, assignmentsTotal, releasesTotal, queueLength, availableDocks, pendingReleases = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
