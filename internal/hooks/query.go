// Package hooks turns asynchronous chain reads into observable state that follows the
// wallet session.
package hooks

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Inn-Chain/chain-hotel-bookings/internal/escrow"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/wallet"
)

type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is one published snapshot of a query. Data survives a failed load; Err and
// Message are cleared only by a successful one.
type State[T any] struct {
	Status     Status
	Data       T
	Err        error
	Message    string
	Generation uint64
}

func (s State[T]) Loading() bool { return s.Status == Loading }

// Fetcher performs one read against a live connection.
type Fetcher[T any] func(ctx context.Context, conn *wallet.Connection) (T, error)

// Query keeps the latest result of a Fetcher and reloads it when the session changes.
// Every load takes a new generation and only the newest generation may publish its
// result.
type Query[T any] struct {
	name     string
	session  *wallet.Session
	fetch    Fetcher[T]
	empty    T
	fallback string
	log      zerolog.Logger

	mu         sync.Mutex
	state      State[T]
	generation uint64

	watchMu  sync.Mutex
	watchers map[uint64]func(State[T])
	nextID   uint64

	// pubMu is held while watchers run; published is the newest generation delivered.
	pubMu     sync.Mutex
	published uint64

	lifeMu      sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	stopSession func()
	wg          sync.WaitGroup
}

// New builds a query in Idle. empty is published whenever no connection is active.
func New[T any](name string, session *wallet.Session, fetch Fetcher[T], empty T, log zerolog.Logger) *Query[T] {
	return &Query[T]{
		name:     name,
		session:  session,
		fetch:    fetch,
		empty:    empty,
		fallback: "Failed to fetch " + name,
		log:      log.With().Str("component", "hooks").Str("query", name).Logger(),
		state:    State[T]{Status: Idle, Data: empty},
		watchers: make(map[uint64]func(State[T])),
	}
}

func (q *Query[T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Watch registers fn for every published state. Deliveries are serialized and never go
// back to an older generation, so fn must not call Refetch synchronously. The returned
// func removes only this registration.
func (q *Query[T]) Watch(fn func(State[T])) (cancel func()) {
	q.watchMu.Lock()
	q.nextID++
	id := q.nextID
	q.watchers[id] = fn
	q.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.watchMu.Lock()
			delete(q.watchers, id)
			q.watchMu.Unlock()
		})
	}
}

// Refetch loads synchronously and returns the state this load settled in. If a newer
// load started meanwhile, the returned state is whatever is current.
func (q *Query[T]) Refetch(ctx context.Context) State[T] {
	return q.load(ctx)
}

// Start loads once and then again after every session change, each load on its own
// goroutine. Close stops it.
func (q *Query[T]) Start(ctx context.Context) {
	q.lifeMu.Lock()
	defer q.lifeMu.Unlock()
	if q.cancel != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.stopSession = q.session.Watch(func(wallet.Status) { q.spawn() })
	q.spawnLocked()
}

func (q *Query[T]) spawn() {
	q.lifeMu.Lock()
	defer q.lifeMu.Unlock()
	q.spawnLocked()
}

func (q *Query[T]) spawnLocked() {
	if q.ctx == nil || q.ctx.Err() != nil {
		return
	}
	ctx := q.ctx
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.load(ctx)
	}()
}

// Close stops reacting to the session and waits for in-flight loads.
func (q *Query[T]) Close() {
	q.lifeMu.Lock()
	if q.stopSession != nil {
		q.stopSession()
	}
	if q.cancel != nil {
		q.cancel()
	}
	q.lifeMu.Unlock()
	q.wg.Wait()
}

func (q *Query[T]) load(ctx context.Context) State[T] {
	conn := q.session.Current()

	q.mu.Lock()
	q.generation++
	gen := q.generation
	if conn == nil {
		q.state = State[T]{Status: Ready, Data: q.empty, Generation: gen}
		st := q.state
		q.mu.Unlock()
		q.publish(st)
		return st
	}
	q.state.Status = Loading
	q.state.Generation = gen
	st := q.state
	q.mu.Unlock()
	q.publish(st)

	data, err := q.fetch(ctx, conn)

	q.mu.Lock()
	if gen != q.generation {
		st = q.state
		q.mu.Unlock()
		q.log.Debug().Uint64("generation", gen).Uint64("latest", st.Generation).Msg("dropping stale result")
		return st
	}
	if err != nil {
		q.state.Status = Failed
		q.state.Err = err
		q.state.Message = describe(err, q.fallback)
	} else {
		q.state = State[T]{Status: Ready, Data: data, Generation: gen}
	}
	st = q.state
	q.mu.Unlock()

	if err != nil {
		q.log.Warn().Err(err).Uint64("generation", gen).Msg("load failed")
	}
	q.publish(st)
	return st
}

func (q *Query[T]) publish(st State[T]) {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	if st.Generation < q.published {
		q.log.Debug().Uint64("generation", st.Generation).Uint64("published", q.published).Msg("dropping superseded state")
		return
	}
	q.published = st.Generation

	q.watchMu.Lock()
	fns := make([]func(State[T]), 0, len(q.watchers))
	for _, fn := range q.watchers {
		fns = append(fns, fn)
	}
	q.watchMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// describe turns an adapter error into a message fit for display.
func describe(err error, fallback string) string {
	var revert *escrow.RevertError
	switch {
	case errors.As(err, &revert) && revert.Reason != "":
		return "Transaction reverted: " + revert.Reason
	case errors.Is(err, escrow.ErrConnectionUnavailable):
		return "Connect a wallet to continue"
	case errors.Is(err, escrow.ErrTransactionRejected):
		return "Request was rejected in the wallet"
	case errors.Is(err, escrow.ErrTransactionReverted):
		return "Transaction reverted"
	case errors.Is(err, escrow.ErrNotFound):
		return "Requested record was not found on chain"
	case errors.Is(err, escrow.ErrMalformedAmount):
		return "Amount is not a valid number"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fallback + ": request timed out or was cancelled"
	default:
		return fallback
	}
}
