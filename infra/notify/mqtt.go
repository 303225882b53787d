package notify

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kilianp07/dockyard/core/events"
	coremqtt "github.com/kilianp07/dockyard/core/mqtt"
)

// MQTTNotifier publishes every event on <prefix>/<kind>, with the dots of the
// kind turned into topic levels. Dock events are also published retained on
// <prefix>/docks/<id> so late subscribers see the current occupant.
type MQTTNotifier struct {
	pub    coremqtt.Publisher
	prefix string
}

// NewMQTTNotifier wraps an MQTT publisher.
func NewMQTTNotifier(pub coremqtt.Publisher, prefix string) *MQTTNotifier {
	return &MQTTNotifier{pub: pub, prefix: strings.TrimSuffix(prefix, "/")}
}

func (n *MQTTNotifier) Name() string { return "mqtt" }

// Topic returns the event topic for kind.
func (n *MQTTNotifier) Topic(kind events.Kind) string {
	return n.prefix + "/" + strings.ReplaceAll(string(kind), ".", "/")
}

type dockState struct {
	DockID  string `json:"dockId"`
	TruckID string `json:"truckId"`
	Status  string `json:"status"`
}

func (n *MQTTNotifier) Notify(_ context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := n.pub.Publish(n.Topic(ev.Kind), false, payload); err != nil {
		return err
	}
	var st dockState
	switch ev.Kind {
	case events.KindDockAssigned:
		st = dockState{DockID: ev.DockID, TruckID: ev.TruckID, Status: "occupied"}
	case events.KindDockReleased:
		st = dockState{DockID: ev.DockID, Status: "available"}
	default:
		return nil
	}
	state, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return n.pub.Publish(n.prefix+"/docks/"+ev.DockID, true, state)
}
