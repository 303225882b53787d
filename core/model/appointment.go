package model

import (
	"fmt"
	"time"
)

// AppointmentType is the kind of work a truck is booked for.
type AppointmentType string

const (
	AppointmentLoading   AppointmentType = "loading"
	AppointmentUnloading AppointmentType = "unloading"
)

// ParseAppointmentType validates s as an AppointmentType.
func ParseAppointmentType(s string) (AppointmentType, error) {
	switch t := AppointmentType(s); t {
	case AppointmentLoading, AppointmentUnloading:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown appointment type %q", ErrInvalidRequest, s)
}

// AppointmentStatus is a state of the appointment lifecycle.
type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "booked"
	StatusArrived   AppointmentStatus = "arrived"
	StatusAssigned  AppointmentStatus = "assigned"
	StatusLoading   AppointmentStatus = "loading"
	StatusCompleted AppointmentStatus = "completed"
	StatusDeparted  AppointmentStatus = "departed"
)

// lifecycle is the only legal order of statuses.
var lifecycle = []AppointmentStatus{
	StatusBooked,
	StatusArrived,
	StatusAssigned,
	StatusLoading,
	StatusCompleted,
	StatusDeparted,
}

// ParseAppointmentStatus validates s as an AppointmentStatus.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	st := AppointmentStatus(s)
	if st.index() < 0 {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, s)
	}
	return st, nil
}

func (s AppointmentStatus) index() int {
	for i, v := range lifecycle {
		if v == s {
			return i
		}
	}
	return -1
}

// Next returns the immediate successor. Departed has none.
func (s AppointmentStatus) Next() (AppointmentStatus, bool) {
	i := s.index()
	if i < 0 || i == len(lifecycle)-1 {
		return "", false
	}
	return lifecycle[i+1], true
}

// Terminal reports whether no transition leaves s.
func (s AppointmentStatus) Terminal() bool { return s == StatusDeparted }

// Before reports whether s comes strictly earlier in the lifecycle than o.
func (s AppointmentStatus) Before(o AppointmentStatus) bool {
	return s.index() >= 0 && s.index() < o.index()
}

// Assignable reports whether an appointment in s may be paired with a dock.
func (s AppointmentStatus) Assignable() bool {
	return s == StatusBooked || s == StatusArrived
}

// CheckTransition returns an *InvalidTransitionError unless to is the
// immediate successor of from.
func CheckTransition(from, to AppointmentStatus) error {
	if next, ok := from.Next(); ok && next == to {
		return nil
	}
	return &InvalidTransitionError{From: from, To: to}
}

// PathTo lists the statuses stepped through to reach to from s, excluding s.
// It is empty when s already equals to.
func (s AppointmentStatus) PathTo(to AppointmentStatus) ([]AppointmentStatus, error) {
	from, target := s.index(), to.index()
	if from < 0 || target < 0 || target < from {
		return nil, &InvalidTransitionError{From: s, To: to}
	}
	return append([]AppointmentStatus(nil), lifecycle[from+1:target+1]...), nil
}

// Appointment records one truck visit.
type Appointment struct {
	ID                string            `json:"id"`
	TruckID           string            `json:"truckId"`
	Supplier          string            `json:"supplier"`
	DockID            string            `json:"dockId,omitempty"`
	ScheduledTime     time.Time         `json:"scheduledTime"`
	Status            AppointmentStatus `json:"status"`
	Type              AppointmentType   `json:"type"`
	ActualArrivalTime *time.Time        `json:"actualArrivalTime,omitempty"`
	LoadingStartTime  *time.Time        `json:"loadingStartTime,omitempty"`
	LoadingEndTime    *time.Time        `json:"loadingEndTime,omitempty"`
	DepartureTime     *time.Time        `json:"departureTime,omitempty"`
}

// Apply moves the appointment into to and stamps the timestamp that belongs to
// the new status. It does not check adjacency.
func (a *Appointment) Apply(to AppointmentStatus, at time.Time) {
	a.Status = to
	t := at
	switch to {
	case StatusArrived:
		a.ActualArrivalTime = &t
	case StatusLoading:
		a.LoadingStartTime = &t
	case StatusCompleted:
		if a.LoadingStartTime == nil {
			a.LoadingStartTime = &t
		}
		a.LoadingEndTime = &t
	case StatusDeparted:
		a.DepartureTime = &t
	}
}
