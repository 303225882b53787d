package model

import (
	"sort"
	"time"
)

// QueueEntry is a truck waiting for a dock. Type mirrors the appointment type
// so candidates can be matched to docks without loading the appointment.
type QueueEntry struct {
	ID            string          `json:"id"`
	TruckID       string          `json:"truckId"`
	ArrivalTime   time.Time       `json:"arrivalTime"`
	AppointmentID string          `json:"appointmentId"`
	Type          AppointmentType `json:"type"`
}

// SortQueue orders entries by ascending arrival time, then id for stability.
func SortQueue(entries []QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ArrivalTime.Equal(entries[j].ArrivalTime) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].ArrivalTime.Before(entries[j].ArrivalTime)
	})
}

// AssignmentRecord is the audit entry of one truck-to-dock pairing.
type AssignmentRecord struct {
	ID            string     `json:"id"`
	TruckID       string     `json:"truckId"`
	DockID        string     `json:"dockId"`
	AppointmentID string     `json:"appointmentId"`
	AssignedAt    time.Time  `json:"assignedAt"`
	DepartedAt    *time.Time `json:"departedAt,omitempty"`
}

// Open reports whether the truck has not departed yet.
func (r AssignmentRecord) Open() bool { return r.DepartedAt == nil }

// SortAssignmentsDesc orders records by descending assignedAt.
func SortAssignmentsDesc(recs []AssignmentRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].AssignedAt.Equal(recs[j].AssignedAt) {
			return recs[i].ID > recs[j].ID
		}
		return recs[i].AssignedAt.After(recs[j].AssignedAt)
	})
}
