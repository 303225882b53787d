package metrics

import (
	"context"

	"github.com/kilianp07/dockyard/core/events"
	coremetrics "github.com/kilianp07/dockyard/core/metrics"
	"github.com/kilianp07/dockyard/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records appointment
// status changes on sinks that accept them. Assignments and releases are
// recorded by the scheduler itself. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.StatusRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if ev.Kind != events.KindAppointmentStatus || ev.Appointment == nil {
					continue
				}
				a := ev.Appointment
				_ = rec.RecordStatus(coremetrics.StatusEvent{
					AppointmentID: a.ID,
					TruckID:       a.TruckID,
					Type:          a.Type,
					Status:        a.Status,
					Time:          ev.At,
				})
			}
		}
	}()
}
