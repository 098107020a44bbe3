package sessions

import "github.com/elfrances/grs/internal/network"

// EventKind discriminates the engine's inbound events.
type EventKind int

const (
	// EventConnected carries a freshly accepted connection.
	EventConnected EventKind = iota
	// EventData carries one complete inbound message frame.
	EventData
	// EventClosed reports that the peer hung up or the read side
	// failed. Err is nil on a clean close.
	EventClosed
)

// Event is the single currency of the engine's event channel. Accepts,
// inbound frames, and disconnects all flow through it, so the owning
// loop serializes every mutation of shared state.
type Event struct {
	Kind       EventKind
	RiderID    string                      // Data, Closed
	Conn       network.ConnectionInterface // Connected
	RemoteAddr string                      // Connected
	Payload    []byte                      // Data
	Err        error                       // Closed
}

// RiderSession pumps one connection's inbound frames into the engine's
// event channel.
type RiderSession interface {
	// Start launches the session's read loop.
	Start()

	// IsFinished reports whether the session has been closed.
	IsFinished() bool

	// Close shuts the connection down, releasing the read loop. Safe
	// to call more than once.
	Close()
}
