package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTransitionAdjacency(t *testing.T) {
	cases := []struct {
		from, to AppointmentStatus
		ok       bool
	}{
		{StatusBooked, StatusArrived, true},
		{StatusArrived, StatusAssigned, true},
		{StatusAssigned, StatusLoading, true},
		{StatusLoading, StatusCompleted, true},
		{StatusCompleted, StatusDeparted, true},
		{StatusBooked, StatusAssigned, false},
		{StatusArrived, StatusBooked, false},
		{StatusDeparted, StatusDeparted, false},
		{StatusLoading, StatusLoading, false},
		{StatusBooked, StatusDeparted, false},
		{AppointmentStatus("cancelled"), StatusArrived, false},
	}
	for _, c := range cases {
		err := CheckTransition(c.from, c.to)
		if c.ok {
			assert.NoError(t, err, "%s -> %s", c.from, c.to)
			continue
		}
		require.Error(t, err, "%s -> %s", c.from, c.to)
		assert.True(t, errors.Is(err, ErrInvalidTransition))
		var ite *InvalidTransitionError
		require.True(t, errors.As(err, &ite))
		assert.Equal(t, c.from, ite.From)
	}
}

func TestPathTo(t *testing.T) {
	path, err := StatusAssigned.PathTo(StatusDeparted)
	require.NoError(t, err)
	assert.Equal(t, []AppointmentStatus{StatusLoading, StatusCompleted, StatusDeparted}, path)

	path, err = StatusCompleted.PathTo(StatusCompleted)
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = StatusDeparted.PathTo(StatusArrived)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, StatusBooked.Assignable())
	assert.True(t, StatusArrived.Assignable())
	assert.False(t, StatusAssigned.Assignable())
	assert.True(t, StatusDeparted.Terminal())
	_, ok := StatusDeparted.Next()
	assert.False(t, ok)
	assert.True(t, StatusBooked.Before(StatusLoading))
	assert.False(t, StatusLoading.Before(StatusLoading))

	_, err := ParseAppointmentStatus("teleported")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestApplyStampsTimes(t *testing.T) {
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	a := Appointment{Status: StatusBooked}
	a.Apply(StatusArrived, now)
	require.NotNil(t, a.ActualArrivalTime)
	a.Apply(StatusAssigned, now.Add(time.Minute))
	a.Apply(StatusCompleted, now.Add(2*time.Minute))
	require.NotNil(t, a.LoadingStartTime)
	require.NotNil(t, a.LoadingEndTime)
	a.Apply(StatusDeparted, now.Add(3*time.Minute))
	require.NotNil(t, a.DepartureTime)
	assert.Equal(t, StatusDeparted, a.Status)
}

func TestDockServesAndInvariant(t *testing.T) {
	assert.True(t, DockPriority.Serves(AppointmentUnloading))
	assert.True(t, DockLoading.Serves(AppointmentLoading))
	assert.False(t, DockLoading.Serves(AppointmentUnloading))

	now := time.Now()
	assert.True(t, Dock{Status: DockAvailable}.Consistent())
	assert.True(t, Dock{Status: DockOccupied, CurrentTruckID: "T1", AssignedAt: &now}.Consistent())
	assert.False(t, Dock{Status: DockOccupied}.Consistent())
	assert.False(t, Dock{Status: DockAvailable, CurrentTruckID: "T1"}.Consistent())
}

func TestStorageErrorKinds(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("insert dock", cause)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, NewStorageError("noop", nil))

	nf := NotFound("dock", "D9")
	assert.Equal(t, nf, NewStorageError("get dock", nf))
	assert.ErrorIs(t, &UnavailableError{DockID: "D1", Reason: "occupied"}, ErrResourceUnavailable)
}

func TestSortQueue(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []QueueEntry{
		{ID: "b", ArrivalTime: base.Add(time.Minute)},
		{ID: "c", ArrivalTime: base},
		{ID: "a", ArrivalTime: base},
	}
	SortQueue(entries)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "c", entries[1].ID)
	assert.Equal(t, "b", entries[2].ID)
}
