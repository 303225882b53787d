package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dockyard/core/events"
	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/infra/store/memory"
)

type countingPublisher struct{ n int }

func (c *countingPublisher) Publish(events.Event) { c.n++ }

var t0 = time.Date(2025, 5, 1, 6, 0, 0, 0, time.UTC)

func newQueue() (*Queue, *countingPublisher) {
	n := 0
	pub := &countingPublisher{}
	return New(memory.New(),
		WithIDs(func() string { n++; return fmt.Sprintf("q%d", n) }),
		WithPublisher(pub),
	), pub
}

func TestEnqueueOrdersByArrival(t *testing.T) {
	q, pub := newQueue()
	ctx := context.Background()
	_, err := q.Enqueue(ctx, "T1", t0.Add(2*time.Minute), "a1", model.AppointmentLoading)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "T2", t0, "a2", model.AppointmentUnloading)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "T3", t0.Add(time.Minute), "a3", model.AppointmentLoading)
	require.NoError(t, err)

	c, err := q.PeekCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, c, 3)
	assert.Equal(t, []string{"T2", "T3", "T1"}, []string{c[0].TruckID, c[1].TruckID, c[2].TruckID})
	assert.Equal(t, 3, pub.n)
}

func TestEnqueueSameAppointmentRefreshes(t *testing.T) {
	q, _ := newQueue()
	ctx := context.Background()
	first, err := q.Enqueue(ctx, "T1", t0, "a1", model.AppointmentLoading)
	require.NoError(t, err)
	again, err := q.Enqueue(ctx, "T1", t0.Add(time.Hour), "a1", model.AppointmentLoading)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.ArrivalTime.Equal(t0.Add(time.Hour)))

	c, err := q.PeekCandidates(ctx)
	require.NoError(t, err)
	assert.Len(t, c, 1)
}

func TestEnqueueValidation(t *testing.T) {
	q, _ := newQueue()
	_, err := q.Enqueue(context.Background(), "", t0, "a1", model.AppointmentLoading)
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestDequeue(t *testing.T) {
	q, _ := newQueue()
	ctx := context.Background()
	e, err := q.Enqueue(ctx, "T1", t0, "a1", model.AppointmentLoading)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "T2", t0, "a2", model.AppointmentLoading)
	require.NoError(t, err)

	ok, err := q.Dequeue(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = q.Dequeue(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = q.DequeueAppointment(ctx, "a2")
	require.NoError(t, err)
	assert.True(t, ok)
	_, found, err := q.Find(ctx, "a2")
	require.NoError(t, err)
	assert.False(t, found)

	c, err := q.PeekCandidates(ctx)
	require.NoError(t, err)
	assert.Empty(t, c)
}
