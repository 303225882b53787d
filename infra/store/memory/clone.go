package memory

import (
	"fmt"
	"time"

	"github.com/kilianp07/dockyard/core/model"
)

func errDuplicate(id string) error { return fmt.Errorf("duplicate id %s", id) }

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneDock(d model.Dock) model.Dock {
	d.AssignedAt = cloneTime(d.AssignedAt)
	return d
}

func cloneAppointment(a model.Appointment) model.Appointment {
	a.ActualArrivalTime = cloneTime(a.ActualArrivalTime)
	a.LoadingStartTime = cloneTime(a.LoadingStartTime)
	a.LoadingEndTime = cloneTime(a.LoadingEndTime)
	a.DepartureTime = cloneTime(a.DepartureTime)
	return a
}

func cloneRecord(r model.AssignmentRecord) model.AssignmentRecord {
	r.DepartedAt = cloneTime(r.DepartedAt)
	return r
}
