package server

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when an event arrives in a state that
// cannot accept it.
var ErrIllegalTransition = errors.New("illegal connection state transition")

// ConnState is the lifecycle state of a single connection.
type ConnState int

const (
	// StateAnonymous is a connected client that has not logged in.
	StateAnonymous ConnState = iota
	// StateLoggedIn is a connected client with at least one session.
	StateLoggedIn
	// StateDisconnected is terminal.
	StateDisconnected
)

// eventDisconnect is the transport-level disconnect; it never appears on the wire.
const eventDisconnect = "disconnect"

func (s ConnState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateLoggedIn:
		return "logged-in"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// Next returns the state reached by applying event to s. Messages and typing
// signals are accepted before login and leave the state unchanged; a repeated
// login is accepted as well.
func (s ConnState) Next(event string) (ConnState, error) {
	if s == StateDisconnected {
		return s, fmt.Errorf("%s in state %s: %w", event, s, ErrIllegalTransition)
	}

	switch event {
	case EventLogin:
		return StateLoggedIn, nil
	case EventSendMessage, EventTyping:
		return s, nil
	case eventDisconnect:
		return StateDisconnected, nil
	default:
		return s, fmt.Errorf("unknown event %q in state %s: %w", event, s, ErrIllegalTransition)
	}
}
