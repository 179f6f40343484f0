package socket

// Socket.io event names shared by the server and the dashboard client.
const (
	EventStreamNodeEvents   = "stream-node-events"
	EventStopNodeEvents     = "stop-node-events"
	EventStreamSystemEvents = "stream-system-events"
	EventNodeEvent          = "node-event"
	EventSystemEvent        = "system-event"
	EventSetActive          = "set-active"
	EventSetCadence         = "set-cadence"
	EventStatus             = "status"
)

// Cadence is the payload of EventSetCadence.
type Cadence struct {
	IntervalSec uint32 `json:"intervalSec"`
	FastCount   uint32 `json:"fastCount"`
}
