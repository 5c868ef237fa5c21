/*
Package session maintains the single long-lived XMPP session that the bridge
relays messages through.

A Session logs in, announces presence, joins each configured room, and then
keeps the stream alive with a whitespace frame every second.  Every stanza
and keep-alive the session sends is written on the session's own goroutine, so
any number of callers may call SendToRoom concurrently and their stanzas are
written one at a time, in the order they were accepted.  The only other writer
is the XMPP client itself, which answers server pings while reading.

There is no reconnect.  Any dial, read, or write error fails the session, which
is reported by closing the Done channel and setting Err.

*/
package session

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/http2xmpp/stanza"
	"github.com/gammazero/http2xmpp/stdlog"
)

const (
	// Interval between keep-alives if not specified.
	defaultKeepAlive = time.Second

	// Rooms are joined without replaying history.
	historyMaxStanzas = 0
	historySeconds    = 1
)

// A Session owns the connection to an XMPP server.
type Session struct {
	jid        string
	rooms      []string
	roomSuffix string
	resource   string
	keepAlive  time.Duration

	stateMu  sync.Mutex
	state    int32
	finished bool

	connMu sync.Mutex
	conn   Conn

	joinedMu sync.Mutex
	joined   []string

	actionChan chan func()

	ready    chan struct{}
	stopping chan struct{}
	done     chan struct{}
	doneOnce sync.Once
	err      error
	wg       sync.WaitGroup

	log   stdlog.StdLog
	debug bool

	closed int32
}

// Connect starts a session for the account in cfg and returns immediately.
// The session is usable once the Ready channel is closed.  If the session
// fails first, Done is closed and Err reports why.
func Connect(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "", 0)
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	dial := cfg.Dial
	if dial == nil {
		dial = DialXMPP
	}

	s := &Session{
		jid:        cfg.JID,
		rooms:      append([]string(nil), cfg.Rooms...),
		roomSuffix: cfg.RoomSuffix,
		resource:   cfg.Resource,
		keepAlive:  cfg.KeepAlive,

		actionChan: make(chan func()),

		ready:    make(chan struct{}),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),

		log:   cfg.Logger,
		debug: cfg.Debug,
	}
	s.wg.Add(1)
	go s.run(dial, cfg)
	return s
}

// Ready returns a channel that is closed when the session has joined its
// rooms and can accept sends.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Done returns a channel that is closed when the session is no longer
// connected, either because it failed or because it was closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error that failed the session.  It returns nil while the
// session is running and after a clean Close.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(atomic.LoadInt32(&s.state))
}

// Rooms returns the addresses of the rooms that joins were sent to.  Joins are
// not acknowledged, so a room is listed as soon as its join is written.
func (s *Session) Rooms() []string {
	s.joinedMu.Lock()
	defer s.joinedMu.Unlock()
	return append([]string(nil), s.joined...)
}

// SendToRoom sends body as a groupchat message to the room at address to.
//
// The message is written on the session's connection without waiting for any
// acknowledgment from the server.  An error is returned only if the session is
// not ready or the write fails.
func (s *Session) SendToRoom(to, body string) error {
	payload, err := stanza.GroupChat{To: to, Body: body}.Render()
	if err != nil {
		return err
	}
	if s.debug {
		s.log.Println("Session sending message to", to)
	}
	return s.SendRaw(payload)
}

// SendRaw writes payload to the session's connection as is.
func (s *Session) SendRaw(payload string) error {
	switch s.State() {
	case Ready:
	case Failed:
		return s.doneErr()
	case Disconnected:
		if atomic.LoadInt32(&s.closed) != 0 {
			return ErrClosed
		}
		return ErrNotReady
	default:
		return ErrNotReady
	}

	errChan := make(chan error, 1)
	select {
	case s.actionChan <- func() { errChan <- s.write(payload) }:
	case <-s.done:
		return s.doneErr()
	}
	return <-errChan
}

// Close announces the session as unavailable and ends the stream.  Calling
// Close again returns ErrAlreadyClosed.
func (s *Session) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return ErrAlreadyClosed
	}
	close(s.stopping)
	<-s.done
	s.wg.Wait()
	return nil
}

func (s *Session) doneErr() error {
	if s.err != nil {
		return s.err
	}
	return ErrClosed
}

// setState moves the session to state unless it has already finished.
func (s *Session) setState(state State) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.finished {
		return false
	}
	s.storeState(state)
	return true
}

func (s *Session) storeState(state State) {
	atomic.StoreInt32(&s.state, int32(state))
	if s.debug {
		s.log.Println("Session", s.jid, state)
	}
}

// run connects and bootstraps the session, then executes actions and
// keep-alives until the session fails or is closed.  It is the only goroutine
// that sends stanzas on the connection.
func (s *Session) run(dial DialFunc, cfg Config) {
	defer s.wg.Done()

	s.setState(Connecting)
	conn, err := dial(cfg)
	if err != nil {
		s.finish(fmt.Errorf("connect %s: %w", s.jid, err))
		return
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	select {
	case <-s.stopping:
		s.finish(nil)
		return
	default:
	}

	s.wg.Add(1)
	go s.receive(conn)

	s.setState(Authenticating)
	if err = s.writeStanza(stanza.Available()); err != nil {
		return
	}
	s.log.Println("Connected to chat", s.jid)

	s.setState(JoiningRooms)
	for _, room := range s.rooms {
		roomJID := room + s.roomSuffix
		join := stanza.JoinRoom(roomJID, s.resource, historyMaxStanzas,
			historySeconds)
		if err = s.writeStanza(join); err != nil {
			return
		}
		s.joinedMu.Lock()
		s.joined = append(s.joined, roomJID)
		s.joinedMu.Unlock()
		s.log.Println("\tJoined room", roomJID)
	}

	if !s.setState(Ready) {
		return
	}
	close(s.ready)

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case action := <-s.actionChan:
			action()
		case <-ticker.C:
			if _, err = conn.SendKeepAlive(); err != nil {
				s.finish(fmt.Errorf("keep-alive: %w", err))
			}
		case <-s.stopping:
			if err = s.writeStanza(stanza.Unavailable()); err != nil {
				s.log.Println("Session error leaving:", err)
			}
			s.finish(nil)
			return
		case <-s.done:
			return
		}
	}
}

// receive reads from the stream until it fails.  Inbound stanzas are not
// relayed anywhere.  Reading detects a broken stream, and lets the client
// answer server pings, which it writes from within Recv.
func (s *Session) receive(conn Conn) {
	defer s.wg.Done()
	for {
		st, err := conn.Recv()
		if err != nil {
			select {
			case <-s.stopping:
			case <-s.done:
			default:
				s.finish(fmt.Errorf("receive: %w", err))
			}
			return
		}
		if s.debug {
			s.log.Printf("Session received %T", st)
		}
	}
}

func (s *Session) writeStanza(st stanza.Stanza) error {
	payload, err := st.Render()
	if err != nil {
		s.finish(err)
		return err
	}
	return s.write(payload)
}

// write must only be called from run.
func (s *Session) write(payload string) error {
	if _, err := s.conn.SendOrg(payload); err != nil {
		err = fmt.Errorf("send: %w", err)
		s.finish(err)
		return err
	}
	return nil
}

// finish ends the session exactly once.  A nil err is a clean close.
func (s *Session) finish(err error) {
	s.doneOnce.Do(func() {
		s.stateMu.Lock()
		s.finished = true
		s.err = err
		close(s.done)
		if err != nil {
			s.storeState(Failed)
		} else {
			s.storeState(Disconnected)
		}
		s.stateMu.Unlock()

		s.connMu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.connMu.Unlock()
	})
}
