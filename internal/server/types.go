// Package server defines the wire envelope, event names and payload types
// shared by the client pumps and the router.
package server

import (
	"encoding/json"
	"strings"
)

// Inbound and outbound event names.
const (
	EventLogin          = "login"
	EventSendMessage    = "sendMessage"
	EventTyping         = "typing"
	EventUsers          = "users"
	EventReceiveMessage = "receiveMessage"
)

// Envelope is the JSON frame exchanged over the WebSocket: an event name and
// its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MessagePayload is the part of a direct message the router reads to find
// the receiver. The message itself is relayed as the sender wrote it.
type MessagePayload struct {
	Sender   string `json:"sender" validate:"omitempty,max=64"`
	Receiver string `json:"receiver" validate:"required,max=64"`
	Text     string `json:"text"`
}

// TypingPayload is the inbound typing indicator.
type TypingPayload struct {
	Sender   string `json:"sender" validate:"omitempty,max=64"`
	Receiver string `json:"receiver" validate:"required,max=64"`
	IsTyping bool   `json:"isTyping"`
}

// TypingNotice is the typing indicator as seen by the receiver.
type TypingNotice struct {
	Sender   string `json:"sender"`
	IsTyping bool   `json:"isTyping"`
}

// UserEntry is one roster line in a users broadcast.
type UserEntry struct {
	Username     string `json:"username"`
	ConnectionID string `json:"connectionId"`
	OnlineStatus bool   `json:"onlineStatus"`
}

// InboundEvent is an envelope read from a peer, queued for the router.
type InboundEvent struct {
	Peer     Peer
	Envelope Envelope
}

type outboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encodeEvent(event string, data any) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Event: event, Data: data})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
