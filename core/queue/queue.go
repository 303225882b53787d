// Package queue holds trucks waiting for a dock. Entries are keyed by
// appointment and leave the queue only when their truck is assigned.
package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/dockyard/core/events"
	"github.com/kilianp07/dockyard/core/logger"
	"github.com/kilianp07/dockyard/core/model"
	"github.com/kilianp07/dockyard/core/store"
)

// Queue is the truck waiting list.
type Queue struct {
	store store.QueueStore
	newID func() string
	pub   events.Publisher
	log   logger.Logger
}

// Option customizes a Queue.
type Option func(*Queue)

func WithIDs(f func() string) Option { return func(q *Queue) { q.newID = f } }

func WithPublisher(p events.Publisher) Option {
	return func(q *Queue) {
		if p != nil {
			q.pub = p
		}
	}
}

func WithLogger(l logger.Logger) Option { return func(q *Queue) { q.log = logger.OrNop(l) } }

// New returns a Queue backed by s.
func New(s store.QueueStore, opts ...Option) *Queue {
	q := &Queue{store: s, newID: uuid.NewString, pub: events.NopPublisher{}, log: logger.Nop{}}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue adds the truck for appointmentID, or refreshes the arrival time of
// the entry the appointment already has.
func (q *Queue) Enqueue(ctx context.Context, truckID string, arrival time.Time, appointmentID string, typ model.AppointmentType) (model.QueueEntry, error) {
	if strings.TrimSpace(truckID) == "" || strings.TrimSpace(appointmentID) == "" {
		return model.QueueEntry{}, fmt.Errorf("%w: truckId and appointmentId are required", model.ErrInvalidRequest)
	}
	e, err := q.store.UpsertQueueEntry(ctx, model.QueueEntry{
		ID:            q.newID(),
		TruckID:       truckID,
		ArrivalTime:   arrival.UTC(),
		AppointmentID: appointmentID,
		Type:          typ,
	})
	if err != nil {
		return model.QueueEntry{}, err
	}
	q.pub.Publish(events.TruckQueued(e))
	return e, nil
}

// Dequeue removes the entry. Removing an absent entry reports false.
func (q *Queue) Dequeue(ctx context.Context, id string) (bool, error) {
	return q.store.DeleteQueueEntry(ctx, id)
}

// Find returns the entry of an appointment, if queued.
func (q *Queue) Find(ctx context.Context, appointmentID string) (model.QueueEntry, bool, error) {
	entries, err := q.store.ListQueueEntries(ctx)
	if err != nil {
		return model.QueueEntry{}, false, err
	}
	for _, e := range entries {
		if e.AppointmentID == appointmentID {
			return e, true, nil
		}
	}
	return model.QueueEntry{}, false, nil
}

// DequeueAppointment removes the entry of an appointment if there is one.
func (q *Queue) DequeueAppointment(ctx context.Context, appointmentID string) (bool, error) {
	e, ok, err := q.Find(ctx, appointmentID)
	if err != nil || !ok {
		return false, err
	}
	return q.Dequeue(ctx, e.ID)
}

// PeekCandidates snapshots the queue in ascending arrival order.
func (q *Queue) PeekCandidates(ctx context.Context) ([]model.QueueEntry, error) {
	return q.store.ListQueueEntries(ctx)
}
