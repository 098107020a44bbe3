package network

import (
	"bufio"
	"bytes"
	"io"
	"net"
)

// MaxMessageLen bounds a single inbound message, matching the read
// buffer of the legacy server. A peer that streams more than this
// without a terminator is violating the protocol.
const MaxMessageLen = 1000

type connectionInterface struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

func NewConnectionFromExistent(conn net.Conn) ConnectionInterface {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, MaxMessageLen), MaxMessageLen)
	scanner.Split(scanNulTerminated)

	return &connectionInterface{
		conn:    conn,
		scanner: scanner,
	}
}

// scanNulTerminated splits the stream on NUL bytes. A trailing fragment
// without a terminator is still delivered when the peer closes, since
// the legacy protocol relies on send boundaries rather than guaranteed
// terminators.
func scanNulTerminated(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (c *connectionInterface) ReceiveData() ([]byte, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	// The scanner reuses its buffer across Scan calls.
	data := make([]byte, len(c.scanner.Bytes()))
	copy(data, c.scanner.Bytes())

	return data, nil
}

func (c *connectionInterface) SendData(data []byte) error {
	msg := make([]byte, 0, len(data)+1)
	msg = append(msg, data...)
	msg = append(msg, 0)

	n, err := c.conn.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return io.ErrShortWrite
	}
	return nil
}

func (c *connectionInterface) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *connectionInterface) Close() error {
	return c.conn.Close()
}
