package server

import (
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/elfrances/grs/config"
	"github.com/elfrances/grs/internal/handler"
	"github.com/elfrances/grs/internal/logger"
	"github.com/elfrances/grs/internal/network"
	"github.com/elfrances/grs/internal/protocol"
	"github.com/elfrances/grs/internal/registry"
	"github.com/elfrances/grs/internal/sessions"
)

var log = logger.GetLogger()

const eventQueueSize = 1024

// Server is the session engine: it owns the listening socket, the
// rider registry, and the broadcast scheduler, and drives everything
// from a single event loop. Per-connection reader goroutines and the
// accept goroutine only push events into the loop's channel; every
// mutation of shared state happens on the loop.
type Server struct {
	conf              *config.Config
	clock             clockwork.Clock
	connectionManager network.ConnectionManager
	registry          registry.RiderRegistry
	messageHandler    handler.MessageHandler
	scheduler         *broadcastScheduler

	events        chan sessions.Event
	riderSessions map[string]sessions.RiderSession

	running  atomic.Bool
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

func NewServer(conf *config.Config) *Server {
	return newServerWithClock(conf, clockwork.NewRealClock())
}

func newServerWithClock(conf *config.Config, clock clockwork.Clock) *Server {
	reg := registry.NewRiderRegistry(conf.RideName, clock)

	s := &Server{
		conf:              conf,
		clock:             clock,
		connectionManager: network.NewConnectionManager(conf.IPAddr, conf.TCPPort),
		registry:          reg,
		messageHandler:    handler.NewMessageHandler(conf, reg),
		scheduler:         newBroadcastScheduler(clock, conf.StartTime, conf.LeaderboardPeriod),
		events:            make(chan sessions.Event, eventQueueSize),
		riderSessions:     make(map[string]sessions.RiderSession),
		quit:              make(chan struct{}),
		done:              make(chan struct{}),
	}

	return s
}

// Start opens the listening socket and launches the accept goroutine
// and the event loop. It returns immediately; a bind/listen failure is
// the only error.
func (s *Server) Start() error {
	if err := s.connectionManager.StartListening(); err != nil {
		log.Errorf("action: listen | result: failed | error: %v", err)
		return err
	}
	s.running.Store(true)

	// With no start time the ride is active right away; no go message
	// is broadcast since nobody is registered yet.
	if s.conf.StartTime.IsZero() {
		s.scheduler.ActivateRide()
		s.registry.SetRideActive(true)
	}

	log.Infof("action: listen | result: success | addr: %v", s.connectionManager.Addr())

	go s.acceptLoop()
	go s.eventLoop()

	return nil
}

// Run starts the server and blocks until it shuts down.
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}
	s.setupGracefulShutdown()
	<-s.done
	return nil
}

// Addr is the bound listener address, available once Start returned.
func (s *Server) Addr() net.Addr {
	return s.connectionManager.Addr()
}

func (s *Server) Shutdown() {
	s.quitOnce.Do(func() {
		s.running.Store(false)
		s.connectionManager.Close()
		close(s.quit)
	})
}

/* --- PRIVATE METHODS --- */

func (s *Server) setupGracefulShutdown() {
	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigChannel
		log.Infof("action: shutdown_signal | result: received")
		s.Shutdown()
	}()
}

func (s *Server) acceptLoop() {
	for s.running.Load() {
		conn, err := s.connectionManager.AcceptConnection()
		if err != nil {
			if !s.running.Load() {
				return
			}
			// An accept failure with a live listener leaves the
			// readiness machinery in an unknown state; treat it the
			// way the legacy server treats a poll failure.
			log.Errorf("action: accept | result: failed | error: %v", err)
			s.Shutdown()
			return
		}

		s.events <- sessions.Event{
			Kind:       sessions.EventConnected,
			Conn:       conn,
			RemoteAddr: conn.RemoteAddr(),
		}
	}
}

// eventLoop is the sole driver: one iteration handles at most one
// event, bounded by the scheduler's next deadline, then re-checks the
// timers. There is no other thread of control touching the registry.
func (s *Server) eventLoop() {
	defer close(s.done)
	defer s.closeAllSessions()

	for s.running.Load() {
		timer := s.clock.NewTimer(s.scheduler.NextWait())

		select {
		case ev := <-s.events:
			s.handleEvent(ev)
		case <-timer.Chan():
		case <-s.quit:
			stopAndDrainTimer(timer)
			return
		}
		stopAndDrainTimer(timer)

		s.checkTimers()
	}
}

// stopAndDrainTimer safely stops a timer, draining its channel when it
// already fired so the next iteration does not wake spuriously.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

func (s *Server) handleEvent(ev sessions.Event) {
	switch ev.Kind {
	case sessions.EventConnected:
		s.handleConnect(ev)
	case sessions.EventData:
		s.handleData(ev)
	case sessions.EventClosed:
		s.disconnect(ev.RiderID, ev.Err)
	}
}

func (s *Server) handleConnect(ev sessions.Event) {
	if s.registry.Count() >= s.conf.MaxRiders {
		// The legacy protocol has no way to tell the rejected peer
		// why, so the connection is silently dropped.
		log.Warnf("action: accept | result: dropped | reason: max riders reached | addr: %s", ev.RemoteAddr)
		ev.Conn.Close()
		return
	}

	rider := s.registry.AddRider(ev.Conn, ev.RemoteAddr)
	sess := sessions.NewRiderSession(rider.ID, ev.Conn, s.events)
	s.riderSessions[rider.ID] = sess
	sess.Start()

	log.Infof("action: connect | rider: %s | addr: %s", rider.ID, ev.RemoteAddr)
}

func (s *Server) handleData(ev sessions.Event) {
	// The rider may have been disconnected earlier in the queue;
	// stray frames for a dead handle are dropped.
	if _, ok := s.riderSessions[ev.RiderID]; !ok {
		return
	}

	if err := s.messageHandler.HandleMessage(ev.RiderID, ev.Payload); err != nil {
		log.Errorf("[%s] Dropping connection: %v", ev.RiderID, err)
		s.disconnect(ev.RiderID, nil)
	}
}

// disconnect tears one rider down: session, registry indices, socket.
// Idempotent, so a duplicate hangup notification is harmless.
func (s *Server) disconnect(riderID string, cause error) {
	if sess, ok := s.riderSessions[riderID]; ok {
		delete(s.riderSessions, riderID)
		sess.Close()
	}

	rider := s.registry.RemoveRider(riderID)
	if rider == nil {
		return
	}

	if cause != nil {
		log.Infof("action: disconnect | rider: %s | addr: %s | state: %s | name: %s | error: %v",
			riderID, rider.RemoteAddr, rider.State, rider.Name, cause)
	} else {
		log.Infof("action: disconnect | rider: %s | addr: %s | state: %s | name: %s",
			riderID, rider.RemoteAddr, rider.State, rider.Name)
	}
}

func (s *Server) checkTimers() {
	if !s.scheduler.RideActive() {
		if s.scheduler.StartDue() {
			log.Infof("INFO: Ready... Set... Go!")
			s.broadcastGo()
			s.scheduler.ActivateRide()
			s.registry.SetRideActive(true)
		}
		return
	}

	if s.scheduler.BroadcastDue() {
		s.broadcastLeaderboards()
		s.scheduler.MarkBroadcast()
	}
}

// broadcastGo sends the ride-started notice to every registered rider.
// A write failure only costs that rider its connection.
func (s *Server) broadcastGo() {
	msg := protocol.EncodeGoMsg()

	var failed []string
	s.registry.ForEachRegistered(func(r *registry.Rider) bool {
		if err := r.Conn.SendData(msg); err != nil {
			log.Errorf("action: go_broadcast | result: failed | rider: %s | bibNum: %d | error: %v", r.ID, r.BibNum, err)
			failed = append(failed, r.ID)
		}
		return true
	})

	for _, id := range failed {
		s.disconnect(id, nil)
	}
}

// broadcastLeaderboards runs one broadcast cycle: for every non-empty
// category, encode the standings once and send them to each registered
// member in bucket order. A write failure aborts the remaining sends
// of that category only; the cycle resumes normally next period.
func (s *Server) broadcastLeaderboards() {
	categories := 0
	var failed []string

	for _, cat := range registry.AllCategories() {
		var entries []protocol.LeaderboardEntry
		var members []*registry.Rider

		s.registry.ForEachInCategory(cat, func(r *registry.Rider) bool {
			entries = append(entries, protocol.LeaderboardEntry{
				Name:     r.Name,
				BibNum:   r.BibNum,
				Distance: r.Distance,
				Power:    r.Power,
			})
			members = append(members, r)
			return true
		})

		// Empty categories produce no message at all.
		if len(members) == 0 {
			continue
		}
		categories++

		msg := protocol.EncodeLeaderboard(cat.Label(), entries)
		for _, r := range members {
			if err := r.Conn.SendData(msg); err != nil {
				log.Errorf("action: leaderboard_broadcast | result: failed | category: %s | rider: %s | bibNum: %d | error: %v",
					cat.Label(), r.ID, r.BibNum, err)
				failed = append(failed, r.ID)
				break
			}
		}
	}

	for _, id := range failed {
		s.disconnect(id, nil)
	}

	log.Debugf("action: leaderboard_broadcast | result: success | categories: %d", categories)
}

func (s *Server) closeAllSessions() {
	for id, sess := range s.riderSessions {
		delete(s.riderSessions, id)
		sess.Close()
		s.registry.RemoveRider(id)
	}
}
