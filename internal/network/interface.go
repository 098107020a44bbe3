package network

import "net"

// ConnectionInterface is a framed message stream on top of a connected
// TCP socket. Each message travels as one write of the payload followed
// by a terminating NUL byte; the receive side splits the byte stream on
// that terminator.
type ConnectionInterface interface {
	// ReceiveData blocks until one complete inbound message is
	// available and returns its payload without the terminator.
	ReceiveData() ([]byte, error)

	// SendData writes one message as a single best-effort attempt. A
	// short or failed write is an error; nothing is buffered or
	// retried.
	SendData(data []byte) error

	// RemoteAddr is the peer address, used for logging only.
	RemoteAddr() string

	// Close releases the underlying socket. Safe to call more than once.
	Close() error
}

// ConnectionManager owns the listening socket.
type ConnectionManager interface {
	// StartListening opens the listening TCP socket. A failure here is
	// fatal for the server.
	StartListening() error

	// AcceptConnection blocks until a client connects and returns the
	// framed connection with TCP_NODELAY already set.
	AcceptConnection() (ConnectionInterface, error)

	// Addr is the bound listener address.
	Addr() net.Addr

	// Close shuts down the listener.
	Close() error
}
