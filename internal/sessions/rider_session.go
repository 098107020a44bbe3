package sessions

import (
	"errors"
	"io"
	"net"
	"sync/atomic"

	"github.com/elfrances/grs/internal/logger"
	"github.com/elfrances/grs/internal/network"
)

var log = logger.GetLogger()

type riderSession struct {
	id      string
	conn    network.ConnectionInterface
	events  chan<- Event
	running atomic.Bool
}

func NewRiderSession(id string, conn network.ConnectionInterface, events chan<- Event) RiderSession {
	s := &riderSession{
		id:     id,
		conn:   conn,
		events: events,
	}
	s.running.Store(true)
	return s
}

func (rs *riderSession) Start() {
	go rs.readLoop()
}

func (rs *riderSession) IsFinished() bool {
	return !rs.running.Load()
}

func (rs *riderSession) Close() {
	if rs.running.CompareAndSwap(true, false) {
		if err := rs.conn.Close(); err != nil {
			log.Debugf("[%s] Error closing connection: %v", rs.id, err)
		}
	}
}

/* --- PRIVATE METHODS --- */

func (rs *riderSession) readLoop() {
	for {
		data, err := rs.conn.ReceiveData()
		if err != nil {
			// A clean peer close or our own shutdown is not an error.
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				err = nil
			}
			rs.events <- Event{Kind: EventClosed, RiderID: rs.id, Err: err}
			return
		}

		rs.events <- Event{Kind: EventData, RiderID: rs.id, Payload: data}
	}
}
