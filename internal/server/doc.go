// Package server implements the WebSocket relay for chitchat.
//
// A Router owns the per-connection state machine and turns inbound events
// (login, sendMessage, typing, disconnect) into registry updates and
// outbound deliveries. Clients pump frames between their WebSocket and the
// Router. The remaining files hold configuration, origin checks, rate
// limiting and the HTTP surface.
package server
