package chat

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
)

// EventsTopic is the watermill topic the coordinator publishes on.
const EventsTopic = "chat.events"

// EventKind names a coordinator state change.
type EventKind string

const (
	// EventTimeline fires whenever the timeline content changed: load, clear,
	// optimistic append, placeholder append, reconciliation.
	EventTimeline EventKind = "timeline"
	// EventSessions fires when the session set changed.
	EventSessions EventKind = "sessions"
	// EventLoading fires when the global loading flag flips.
	EventLoading EventKind = "loading"
	// EventRevealTick carries one frame of the progressive reveal.
	EventRevealTick EventKind = "reveal.tick"
	// EventRevealDone fires once when a reveal completes.
	EventRevealDone EventKind = "reveal.done"
	// EventAuthExpired fires when any operation hit an expired credential.
	// The presentation layer must force re-authentication.
	EventAuthExpired EventKind = "auth.expired"
)

// Event is the payload published on EventsTopic. Fields beyond Kind are only
// set where they apply.
type Event struct {
	Kind EventKind `json:"kind"`

	Loading bool `json:"loading,omitempty"`

	// Reveal frames: index of the message being revealed plus the frame.
	Index  int    `json:"index,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Cursor bool   `json:"cursor,omitempty"`
}

// Marshal encodes the event as a watermill message payload.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromMessage decodes an Event from a watermill message.
func EventFromMessage(msg *message.Message) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return Event{}, errors.Wrap(err, "decode chat event")
	}
	return e, nil
}
