package escrow

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/Inn-Chain/chain-hotel-bookings/internal/contracts"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/fixedpoint"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/wallet"
)

const bookingFetchLimit = 8

// FetchCustomerBookings lists the connected account's bookings, newest id last, joined
// with hotel and room-class names. Booking ids come from BookingCreated logs indexed by
// customer.
func (a *Adapter) FetchCustomerBookings(ctx context.Context, conn *wallet.Connection) ([]BookingDetails, error) {
	backend, err := a.backend(conn)
	if err != nil {
		return nil, fmt.Errorf("customer bookings: %w", err)
	}
	account := conn.Account()
	if account == (common.Address{}) {
		return nil, fmt.Errorf("customer bookings: %w: connection has no account", ErrConnectionUnavailable)
	}

	ids, err := a.customerBookingIDs(ctx, backend, account)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []BookingDetails{}, nil
	}

	decimals, err := a.tokenDecimals(ctx, conn)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bookingFetchLimit)

	var hotels []Hotel
	g.Go(func() error {
		var err error
		hotels, err = a.FetchAllHotels(gctx, conn)
		return err
	})
	bookings := make([]Booking, len(ids))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			b, err := a.fetchBooking(gctx, conn, id, decimals)
			bookings[i] = b
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[uint64]Hotel, len(hotels))
	for _, h := range hotels {
		byID[h.ID] = h
	}

	details := make([]BookingDetails, 0, len(bookings))
	for _, b := range bookings {
		hotel, ok := byID[b.HotelID]
		if !ok {
			return nil, fmt.Errorf("hotel %d of booking %d: %w", b.HotelID, b.ID, ErrNotFound)
		}
		class, ok := hotel.Class(b.RoomClassID)
		if !ok {
			return nil, fmt.Errorf("room class %d of booking %d: %w", b.RoomClassID, b.ID, ErrNotFound)
		}
		total, err := fixedpoint.Sum(b.RoomCost, b.Deposit)
		if err != nil {
			return nil, fmt.Errorf("booking %d total: %w", b.ID, err)
		}
		details = append(details, BookingDetails{
			Booking:       b,
			HotelName:     hotel.Name,
			ClassName:     class.Name,
			PricePerNight: class.PricePerNight,
			TotalAmount:   total,
			State:         b.Status(),
		})
	}
	return details, nil
}

func (a *Adapter) customerBookingIDs(ctx context.Context, backend wallet.Backend, customer common.Address) ([]uint64, error) {
	const method = "BookingCreated.logs"
	eventID := a.innABI.Events[contracts.EventBookingCreated].ID
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(a.cfg.StartBlock),
		Addresses: []common.Address{a.cfg.InnChain},
		Topics:    [][]common.Hash{{eventID}, nil, nil, {common.BytesToHash(customer.Bytes())}},
	}

	started := time.Now()
	logs, err := backend.FilterLogs(ctx, query)
	a.metrics.observeRead(method, started, err)
	if err != nil {
		return nil, classify(method, err)
	}

	seen := make(map[uint64]struct{}, len(logs))
	ids := make([]uint64, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed || len(lg.Topics) < 4 || lg.Topics[0] != eventID {
			continue
		}
		if common.BytesToAddress(lg.Topics[3].Bytes()) != customer {
			continue
		}
		raw := new(big.Int).SetBytes(lg.Topics[1].Bytes())
		if !raw.IsUint64() {
			continue
		}
		id := raw.Uint64()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
