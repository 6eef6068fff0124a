// Package event defines the canonical record of a chat occurrence and its
// mapping to the flattened document form stored in the search index.
package event

import (
	"fmt"
	"time"
)

// Kind classifies a chat occurrence.
type Kind string

const (
	KindConnect    Kind = "CONNECT"
	KindDisconnect Kind = "DISCONNECT"
	KindJoin       Kind = "JOIN"
	KindLeave      Kind = "LEAVE"
	KindMessage    Kind = "MESSAGE"
	KindAction     Kind = "ACTION"
	KindNickChange Kind = "NICK_CHANGE"
	KindIgnore     Kind = "IGNORE"
	KindUnignore   Kind = "UNIGNORE"
)

// SystemActor is the actor recorded for events the process generates itself
// (connection state changes, joins, nick changes seen on the wire).
const SystemActor = "SYSTEM"

// Event is one chat occurrence. Events are constructed once at capture time
// and never mutated afterwards; every sink receives the same instance.
// Channel and Payload may be empty for system-level events.
type Event struct {
	// Time is assigned at capture. Monotonically non-decreasing within one
	// process, but not unique.
	Time time.Time

	// Actor is the nick that caused the occurrence, or SystemActor.
	Actor string

	// Channel is the channel the occurrence happened on, if any.
	Channel string

	// Kind classifies the occurrence.
	Kind Kind

	// Payload is the message text or a human-readable description.
	Payload string

	// Origin identifies the network/server the event was observed on.
	Origin string
}

// Line renders the event the way the console and file sinks record it.
func (e *Event) Line() string {
	ts := e.Time.Format(time.ANSIC)
	return fmt.Sprintf("[%s] %s : <%s> %s", e.Channel, ts, e.Actor, e.Payload)
}

// Document flattens the event into the key/value form stored in the index.
// Fields are written out explicitly; the closed field set is the contract
// with the store, not a reflection of the struct.
func (e *Event) Document() map[string]any {
	return map[string]any{
		"time":    e.Time.UTC().Format(time.RFC3339Nano),
		"actor":   e.Actor,
		"channel": e.Channel,
		"kind":    string(e.Kind),
		"payload": e.Payload,
		"origin":  e.Origin,
	}
}

// FromDocument rebuilds an Event from a stored document. Unknown keys are
// ignored and missing keys yield zero values, matching the schemaless store.
func FromDocument(doc map[string]any) *Event {
	ev := &Event{}
	if v, ok := doc["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			ev.Time = t
		}
	}
	if v, ok := doc["actor"].(string); ok {
		ev.Actor = v
	}
	if v, ok := doc["channel"].(string); ok {
		ev.Channel = v
	}
	if v, ok := doc["kind"].(string); ok {
		ev.Kind = Kind(v)
	}
	if v, ok := doc["payload"].(string); ok {
		ev.Payload = v
	}
	if v, ok := doc["origin"].(string); ok {
		ev.Origin = v
	}
	return ev
}
