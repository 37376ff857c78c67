package escrow

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/Inn-Chain/chain-hotel-bookings/internal/contracts"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/fixedpoint"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/wallet"
)

// Subscription is one registered event listener. Unsubscribe removes this
// registration only; other listeners of the same event keep running.
type Subscription struct {
	id       uint64
	event    string
	registry *listenerRegistry
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
}

func (s *Subscription) Event() string { return s.event }

// Unsubscribe is safe to call more than once and from inside the callback.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.quit)
		s.registry.remove(s)
	})
}

// Done is closed once the listener has stopped delivering events.
func (s *Subscription) Done() <-chan struct{} { return s.done }

type listenerRegistry struct {
	mu      sync.Mutex
	next    uint64
	entries map[uint64]*Subscription
	metrics *Metrics
}

func newListenerRegistry(m *Metrics) *listenerRegistry {
	return &listenerRegistry{entries: make(map[uint64]*Subscription), metrics: m}
}

func (r *listenerRegistry) add(event string) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	s := &Subscription{
		id:       r.next,
		event:    event,
		registry: r,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	r.entries[s.id] = s
	r.metrics.setListeners(event, r.countLocked(event))
	return s
}

func (r *listenerRegistry) remove(s *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[s.id]; !ok {
		return
	}
	delete(r.entries, s.id)
	r.metrics.setListeners(s.event, r.countLocked(s.event))
}

func (r *listenerRegistry) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countLocked(event)
}

func (r *listenerRegistry) countLocked(event string) int {
	n := 0
	for _, s := range r.entries {
		if s.event == event {
			n++
		}
	}
	return n
}

func (r *listenerRegistry) all() []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Subscription, 0, len(r.entries))
	for _, s := range r.entries {
		out = append(out, s)
	}
	return out
}

// ListenerCount reports the active registrations for an event.
func (a *Adapter) ListenerCount(event string) int {
	return a.listeners.count(event)
}

// Close stops every listener registered through this adapter.
func (a *Adapter) Close() {
	for _, s := range a.listeners.all() {
		s.Unsubscribe()
	}
}

// SubscribeBookingCreated delivers BookingCreated events to fn until unsubscribed.
func (a *Adapter) SubscribeBookingCreated(ctx context.Context, conn *wallet.Connection, fn func(BookingCreated)) (*Subscription, error) {
	return a.subscribe(ctx, conn, contracts.EventBookingCreated, func(bound *bind.BoundContract, lg types.Log) error {
		var raw struct {
			BookingId *big.Int
			HotelId   *big.Int
			Customer  common.Address
		}
		if err := bound.UnpackLog(&raw, contracts.EventBookingCreated, lg); err != nil {
			return err
		}
		var r uintReader
		ev := BookingCreated{
			BookingID:   r.read(raw.BookingId, "bookingId"),
			HotelID:     r.read(raw.HotelId, "hotelId"),
			Customer:    raw.Customer,
			TxHash:      lg.TxHash,
			BlockNumber: lg.BlockNumber,
		}
		if r.err != nil {
			return r.err
		}
		fn(ev)
		return nil
	})
}

// SubscribeCheckInConfirmed delivers CheckInConfirmed events with the released room
// cost formatted in token units.
func (a *Adapter) SubscribeCheckInConfirmed(ctx context.Context, conn *wallet.Connection, fn func(CheckInConfirmed)) (*Subscription, error) {
	decimals, err := a.tokenDecimals(ctx, conn)
	if err != nil {
		return nil, err
	}
	return a.subscribe(ctx, conn, contracts.EventCheckInConfirmed, func(bound *bind.BoundContract, lg types.Log) error {
		var raw struct {
			BookingId        *big.Int
			RoomCostReleased *big.Int
		}
		if err := bound.UnpackLog(&raw, contracts.EventCheckInConfirmed, lg); err != nil {
			return err
		}
		var r uintReader
		ev := CheckInConfirmed{
			BookingID:        r.read(raw.BookingId, "bookingId"),
			RoomCostReleased: fixedpoint.Descale(raw.RoomCostReleased, decimals),
			TxHash:           lg.TxHash,
			BlockNumber:      lg.BlockNumber,
		}
		if r.err != nil {
			return r.err
		}
		fn(ev)
		return nil
	})
}

type logHandler func(bound *bind.BoundContract, lg types.Log) error

func (a *Adapter) subscribe(ctx context.Context, conn *wallet.Connection, name string, handle logHandler) (*Subscription, error) {
	backend, err := a.backend(conn)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", name, err)
	}
	bound := a.escrowContract(backend)
	logs, sub, err := bound.WatchLogs(&bind.WatchOpts{Context: ctx}, name)
	if err != nil {
		return nil, classify("watch "+name, err)
	}

	s := a.listeners.add(name)
	a.log.Debug().Str("event", name).Uint64("listener", s.id).Msg("listener registered")
	go a.dispatch(ctx, s, bound, logs, sub, handle)
	return s, nil
}

func (a *Adapter) dispatch(ctx context.Context, s *Subscription, bound *bind.BoundContract, logs <-chan types.Log, sub event.Subscription, handle logHandler) {
	defer close(s.done)
	defer sub.Unsubscribe()

	eventID := a.innABI.Events[s.event].ID
	log := a.log.With().Str("event", s.event).Uint64("listener", s.id).Logger()
	for {
		select {
		case lg := <-logs:
			if lg.Removed || len(lg.Topics) == 0 || lg.Topics[0] != eventID {
				continue
			}
			select {
			case <-s.quit:
				return
			default:
			}
			if err := handle(bound, lg); err != nil {
				log.Warn().Err(err).Str("tx", lg.TxHash.Hex()).Msg("undecodable event log")
			}
		case err := <-sub.Err():
			if err != nil {
				log.Warn().Err(err).Msg("event subscription dropped")
			}
			s.Unsubscribe()
			return
		case <-ctx.Done():
			s.Unsubscribe()
			return
		case <-s.quit:
			return
		}
	}
}
