package network

import (
	"net"
	"strconv"
)

type connectionManager struct {
	ipAddr   string
	port     int
	listener net.Listener
}

// NewConnectionManager creates the owner of the listening socket. An
// empty ipAddr listens on all interfaces; IPv4 vs IPv6 follows the
// configured bind address.
func NewConnectionManager(ipAddr string, port int) ConnectionManager {
	return &connectionManager{
		ipAddr: ipAddr,
		port:   port,
	}
}

func (cm *connectionManager) StartListening() error {
	// Go sets SO_REUSEADDR on listening sockets by default, so a
	// restarted server can rebind right away.
	ln, err := net.Listen("tcp", net.JoinHostPort(cm.ipAddr, strconv.Itoa(cm.port)))
	if err != nil {
		return err
	}

	cm.listener = ln

	return nil
}

func (cm *connectionManager) AcceptConnection() (ConnectionInterface, error) {
	conn, err := cm.listener.Accept()
	if err != nil {
		return nil, err
	}

	// The protocol is request/response and notification style, so
	// Nagle coalescing only adds latency.
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return NewConnectionFromExistent(conn), nil
}

func (cm *connectionManager) Addr() net.Addr {
	if cm.listener == nil {
		return nil
	}
	return cm.listener.Addr()
}

func (cm *connectionManager) Close() error {
	if cm.listener != nil {
		return cm.listener.Close()
	}
	return nil
}
