//go:generate go run go.uber.org/mock/mockgen -source=peer.go -destination=mocks/mock_peer.go -package=mocks
package server

// Peer is a connection as seen by the Router. Deliver must not block: it
// returns false when the payload could not be queued, which the Router
// treats as a transport failure.
type Peer interface {
	ID() string
	Addr() string
	Deliver(payload []byte) bool
	Close()
}
