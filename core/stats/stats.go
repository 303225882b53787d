// Package stats summarizes dock activity for dashboards.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/dockyard/core/model"
)

// Distribution describes a set of durations in seconds.
type Distribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// Summary is a point-in-time view of the yard.
type Summary struct {
	Appointments map[model.AppointmentStatus]int `json:"appointments"`
	Docks        map[model.DockStatus]int        `json:"docks"`
	Queued       int                             `json:"queued"`
	// Wait runs from actual arrival to assignment.
	Wait Distribution `json:"waitSeconds"`
	// Hold runs from assignment to the dock being released.
	Hold Distribution `json:"holdSeconds"`
}

// Describe computes the distribution of samples. It does not modify samples.
func Describe(samples []float64) Distribution {
	if len(samples) == 0 {
		return Distribution{}
	}
	x := append([]float64(nil), samples...)
	sort.Float64s(x)
	d := Distribution{
		Count: len(x),
		P50:   stat.Quantile(0.5, stat.Empirical, x, nil),
		P90:   stat.Quantile(0.9, stat.Empirical, x, nil),
		Max:   floats.Max(x),
	}
	mean, std := stat.MeanStdDev(x, nil)
	d.Mean = mean
	if len(x) > 1 && !math.IsNaN(std) {
		d.StdDev = std
	}
	return d
}

// Summarize builds a Summary from store snapshots.
func Summarize(appts []model.Appointment, docks []model.Dock, queue []model.QueueEntry, recs []model.AssignmentRecord) Summary {
	s := Summary{
		Appointments: make(map[model.AppointmentStatus]int),
		Docks:        make(map[model.DockStatus]int),
		Queued:       len(queue),
	}
	byID := make(map[string]model.Appointment, len(appts))
	for _, a := range appts {
		s.Appointments[a.Status]++
		byID[a.ID] = a
	}
	for _, d := range docks {
		s.Docks[d.Status]++
	}

	var wait, hold []float64
	for _, r := range recs {
		a, ok := byID[r.AppointmentID]
		if !ok {
			continue
		}
		if a.ActualArrivalTime != nil && !r.AssignedAt.Before(*a.ActualArrivalTime) {
			wait = append(wait, r.AssignedAt.Sub(*a.ActualArrivalTime).Seconds())
		}
		if a.LoadingEndTime != nil && !a.LoadingEndTime.Before(r.AssignedAt) {
			hold = append(hold, a.LoadingEndTime.Sub(r.AssignedAt).Seconds())
		}
	}
	s.Wait = Describe(wait)
	s.Hold = Describe(hold)
	return s
}
