// Package telemetry defines the typed event structs that flow over the
// WebSocket connection between audiod and its clients. The daemon's own
// lifecycle events use these types; the recorder and player still
// broadcast map[string]any payloads with the same envelope.
package telemetry

import "time"

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat EventType = "heartbeat"
	EventState     EventType = "state"
	EventProgress  EventType = "progress"
	EventLog       EventType = "log"
	EventPlayback  EventType = "playback"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type      EventType `json:"type"`
	TS        string    `json:"ts"`
	Component string    `json:"component,omitempty"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func envelope(t EventType, component string) Event {
	return Event{Type: t, TS: NowTS(), Component: component}
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Clients       int    `json:"clients"`
}

func NewHeartbeat(component, state string, uptime time.Duration, clients int) Heartbeat {
	return Heartbeat{
		Event:         envelope(EventHeartbeat, component),
		State:         state,
		UptimeSeconds: int64(uptime.Seconds()),
		Clients:       clients,
	}
}

// StateTransition is emitted whenever the recorder moves between states
// (e.g. IDLE -> RECORDING).
type StateTransition struct {
	Event
	From string `json:"from"`
	To   string `json:"to"`
}

func NewStateTransition(component, from, to string) StateTransition {
	return StateTransition{Event: envelope(EventState, component), From: from, To: to}
}

// Progress reports how much audio a running capture has collected.
type Progress struct {
	Event
	Stage   string `json:"stage"`
	Session string `json:"session,omitempty"`
	Bytes   int64  `json:"bytes"`
	Detail  string `json:"detail"`
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

func NewLogLine(component, level, message string) LogLine {
	return LogLine{Event: envelope(EventLog, component), Level: level, Message: message}
}

// Playback announces a clip handed to the output device.
type Playback struct {
	Event
	Frames   int64   `json:"frames"`
	Duration float64 `json:"duration"`
}
