package mqtt

// Publisher sends payloads to broker topics.
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// CheckIn is what a gate reader reports when a truck drives in.
type CheckIn struct {
	TruckID       string `json:"truckId"`
	AppointmentID string `json:"appointmentId"`
}

// CheckInHandler is called for every check-in received from the gate topic.
type CheckInHandler func(CheckIn)
