package chat

// Timeline is the ordered message list for the active session. Insertion
// order is display order. It is append-only except for the single in-place
// reconciliation of the typing placeholder.
//
// Timeline does no locking of its own; the Coordinator serializes access the
// same way the conversation manager guards per-conversation state.
type Timeline struct {
	msgs []Message
}

// Load replaces the timeline with the full history of a session. History is
// never re-animated, so IsNew and IsTyping are forced off on every message
// regardless of what the caller passes in.
func (t *Timeline) Load(msgs []Message) {
	t.msgs = make([]Message, len(msgs))
	copy(t.msgs, msgs)
	for i := range t.msgs {
		t.msgs[i].IsNew = false
		t.msgs[i].IsTyping = false
	}
}

// Append adds a message at the end. Appending a second typing placeholder
// while one is already pending is a logic fault.
func (t *Timeline) Append(m Message) error {
	if m.IsTyping && t.HasPending() {
		return &InvariantError{Msg: "timeline already has a pending placeholder"}
	}
	t.msgs = append(t.msgs, m)
	return nil
}

// ReconcileLastPending replaces the single typing placeholder with a concrete
// message. It is the only in-place mutation the timeline permits. Reconciling
// with no placeholder present returns an InvariantError and leaves the
// timeline unchanged.
func (t *Timeline) ReconcileLastPending(m Message) error {
	for i := len(t.msgs) - 1; i >= 0; i-- {
		if t.msgs[i].IsTyping {
			m.IsTyping = false
			t.msgs[i] = m
			return nil
		}
	}
	return &InvariantError{Msg: "no pending placeholder to reconcile"}
}

// Clear empties the timeline, used when switching to the no-session state.
func (t *Timeline) Clear() {
	t.msgs = nil
}

// Messages returns a copy of the timeline in display order.
func (t *Timeline) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len returns the number of messages in the timeline.
func (t *Timeline) Len() int { return len(t.msgs) }

// HasPending reports whether a typing placeholder is outstanding.
func (t *Timeline) HasPending() bool {
	for i := len(t.msgs) - 1; i >= 0; i-- {
		if t.msgs[i].IsTyping {
			return true
		}
	}
	return false
}

// SettleReveal downgrades the message at index i from IsNew after its reveal
// has completed, so it is never animated again.
func (t *Timeline) SettleReveal(i int) {
	if i < 0 || i >= len(t.msgs) {
		return
	}
	t.msgs[i].IsNew = false
}
