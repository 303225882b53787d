// Package events defines the scheduler events emitted on the event bus.
//
// Available event kinds:
//   - truck.queued: a truck entered or refreshed its queue entry
//   - dock.assigned: a dock was occupied by a truck
//   - dock.released: a dock returned to the pool
//   - appointment.status: an appointment changed status
package events
