package events

import "time"

// Event enumerates the in-process topics of the gateway.
type Event string

const (
	// EventSignalPublished carries a SignalPublished after the broker accepted a signal.
	EventSignalPublished Event = "signal.published"
	// EventSignalRejected carries a SignalRejected for every webhook that failed.
	EventSignalRejected Event = "signal.rejected"
)

type SignalPublished struct {
	EventStore string         `json:"event_store"`
	RoutingKey string         `json:"routing_key"`
	Origin     string         `json:"origin"`
	Signal     map[string]any `json:"signal"`
	At         time.Time      `json:"at"`
}

type SignalRejected struct {
	RequestID string    `json:"request_id"`
	Origin    string    `json:"origin"`
	Kind      string    `json:"kind"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}
