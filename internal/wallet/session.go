package wallet

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Status is a snapshot of the session. Generation changes on every connect and
// disconnect, so it identifies the connection a read was issued against.
type Status struct {
	Connected  bool
	Account    common.Address
	Generation uint64
}

// Session is the connection context shared by the adapter consumers. Only Connect and
// Disconnect replace or clear the connection.
type Session struct {
	connector Connector
	log       zerolog.Logger

	mu         sync.RWMutex
	conn       *Connection
	generation uint64

	watchMu  sync.Mutex
	watchers map[uint64]func(Status)
	nextID   uint64
}

func NewSession(connector Connector, log zerolog.Logger) *Session {
	return &Session{
		connector: connector,
		log:       log.With().Str("component", "wallet").Logger(),
		watchers:  make(map[uint64]func(Status)),
	}
}

// Current returns the active connection or nil.
func (s *Session) Current() *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.conn.Active() {
		return nil
	}
	return s.conn
}

func (s *Session) Connected() bool {
	return s.Current() != nil
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	st := Status{Generation: s.generation}
	if s.conn.Active() {
		st.Connected = true
		st.Account = s.conn.Account()
	}
	return st
}

// Connect obtains a new connection and replaces the current one wholesale.
// On failure the previous connection stays in place.
func (s *Session) Connect(ctx context.Context) (*Connection, error) {
	conn, err := s.connector.Connect(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("connect failed")
		return nil, err
	}

	s.mu.Lock()
	prev := s.conn
	s.conn = conn
	s.generation++
	st := s.statusLocked()
	s.mu.Unlock()

	prev.Close()
	s.log.Info().Str("account", st.Account.Hex()).Uint64("generation", st.Generation).Msg("wallet connected")
	s.notify(st)
	return conn, nil
}

// Disconnect closes and clears the connection. It is a no-op when already disconnected.
func (s *Session) Disconnect() {
	s.mu.Lock()
	prev := s.conn
	if prev == nil {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.generation++
	st := s.statusLocked()
	s.mu.Unlock()

	prev.Close()
	s.log.Info().Uint64("generation", st.Generation).Msg("wallet disconnected")
	s.notify(st)
}

// Watch registers fn for every status change. The returned func removes only this
// registration.
func (s *Session) Watch(fn func(Status)) (cancel func()) {
	s.watchMu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = fn
	s.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.watchMu.Lock()
			delete(s.watchers, id)
			s.watchMu.Unlock()
		})
	}
}

func (s *Session) notify(st Status) {
	s.watchMu.Lock()
	fns := make([]func(Status), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
