package server

import (
	"context"
	"fmt"
)

// Responder produces the assistant reply for an exchange. The development
// server ships a canned responder so the client can run offline end to end;
// real response generation lives behind the remote service, not here.
type Responder interface {
	Respond(ctx context.Context, history []StoredMessage, prompt string) (string, error)
}

// EchoResponder answers deterministically from the prompt and the amount of
// accumulated context.
type EchoResponder struct{}

func (EchoResponder) Respond(_ context.Context, history []StoredMessage, prompt string) (string, error) {
	if len(history) == 0 {
		return fmt.Sprintf("You said: %q. This is a canned reply from the development server.", prompt), nil
	}
	return fmt.Sprintf("You said: %q. We are %d messages into this conversation.", prompt, len(history)), nil
}
