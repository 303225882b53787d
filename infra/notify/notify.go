// Package notify forwards dock and appointment events from the in-process bus
// to external systems.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/dockyard/core/events"
	coremon "github.com/kilianp07/dockyard/core/monitoring"
	"github.com/kilianp07/dockyard/infra/logger"
	"github.com/kilianp07/dockyard/internal/eventbus"
)

// Notifier delivers one event to an external system.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev events.Event) error
}

// Forwarder drains a bus subscription into notifiers. A failing notifier is
// logged and never blocks the others.
type Forwarder struct {
	bus       *eventbus.TypedBus[events.Event]
	notifiers []Notifier
	timeout   time.Duration
	log       logger.Logger
	wg        sync.WaitGroup
}

// NewForwarder creates a Forwarder for the given notifiers.
func NewForwarder(bus *eventbus.TypedBus[events.Event], notifiers ...Notifier) *Forwarder {
	return &Forwarder{bus: bus, notifiers: notifiers, timeout: 5 * time.Second, log: logger.New("notify")}
}

// Start subscribes and forwards until ctx is canceled or the bus closes.
func (f *Forwarder) Start(ctx context.Context) {
	if f.bus == nil || len(f.notifiers) == 0 {
		return
	}
	sub := f.bus.Subscribe()
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				f.deliver(ctx, ev)
			}
		}
	}()
}

// Wait blocks until the forwarding goroutine has exited.
func (f *Forwarder) Wait() { f.wg.Wait() }

func (f *Forwarder) deliver(parent context.Context, ev events.Event) {
	for _, n := range f.notifiers {
		ctx, cancel := context.WithTimeout(parent, f.timeout)
		err := n.Notify(ctx, ev)
		cancel()
		if err != nil {
			f.log.Errorf("%s: deliver %s: %v", n.Name(), ev.Kind, err)
			coremon.CaptureException(err, map[string]string{"module": "notify", "notifier": n.Name()})
		}
	}
}
