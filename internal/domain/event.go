package domain

import "time"

// EventType labels portfolio lifecycle events published on the bus.
type EventType string

const (
	EventPositionOpened EventType = "position_opened"
	EventPositionClosed EventType = "position_closed"
	EventStopAdjusted   EventType = "stop_adjusted"
	EventSnapshotTaken  EventType = "snapshot_taken"
)

// EventChannel is the pub/sub channel lifecycle events are published on;
// EventStream is the durable stream that keeps their history.
const (
	EventChannel = "events"
	EventStream  = "stream:events"
)

// Event is a single portfolio lifecycle record. Events are serialized as
// JSON onto the bus channel and the durable stream.
type Event struct {
	ID        string
	Type      EventType
	Ticker    string
	Price     float64
	Reason    string
	Timestamp time.Time
}
