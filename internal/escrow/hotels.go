package escrow

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Inn-Chain/chain-hotel-bookings/internal/contracts"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/fixedpoint"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/wallet"
)

// FetchAllHotels reads the batched hotel listing. The contract answers with parallel
// arrays; entry i of every array belongs to hotel i, and the per-hotel class arrays are
// aligned with each other.
func (a *Adapter) FetchAllHotels(ctx context.Context, conn *wallet.Connection) ([]Hotel, error) {
	const method = "getAllHotels"
	out, err := a.callEscrow(ctx, conn, method)
	if err != nil {
		return nil, err
	}

	ids, err := output[[]*big.Int](out, 0, method)
	if err != nil {
		return nil, err
	}
	names, err := output[[]string](out, 1, method)
	if err != nil {
		return nil, err
	}
	wallets, err := output[[]common.Address](out, 2, method)
	if err != nil {
		return nil, err
	}
	classIDs, err := output[[][]*big.Int](out, 3, method)
	if err != nil {
		return nil, err
	}
	classNames, err := output[[][]string](out, 4, method)
	if err != nil {
		return nil, err
	}
	classPrices, err := output[[][]*big.Int](out, 5, method)
	if err != nil {
		return nil, err
	}

	n := len(ids)
	if len(names) != n || len(wallets) != n || len(classIDs) != n || len(classNames) != n || len(classPrices) != n {
		return nil, fmt.Errorf("%s: %w: hotel arrays have mismatched lengths", method, ErrNotFound)
	}

	hotels := make([]Hotel, 0, n)
	for i := 0; i < n; i++ {
		k := len(classIDs[i])
		if len(classNames[i]) != k || len(classPrices[i]) != k {
			return nil, fmt.Errorf("%s: %w: class arrays of hotel index %d are misaligned", method, ErrNotFound, i)
		}

		var r uintReader
		classes := make([]RoomClass, 0, k)
		for j := 0; j < k; j++ {
			classes = append(classes, RoomClass{
				ID:            r.read(classIDs[i][j], "classId"),
				Name:          classNames[i][j],
				PricePerNight: fixedpoint.Descale(classPrices[i][j], contracts.ContractDecimals),
				Active:        true,
			})
		}
		hotel := Hotel{
			ID:         r.read(ids[i], "hotelId"),
			Name:       names[i],
			Wallet:     wallets[i],
			ClassCount: uint64(k),
			Classes:    classes,
		}
		if r.err != nil {
			return nil, fmt.Errorf("%s: %w", method, r.err)
		}
		hotels = append(hotels, hotel)
	}
	return hotels, nil
}

// FetchHotel reads one hotel and resolves its classes against the global room-class
// list. Class ids are global, so the hotel's membership list is looked up there.
func (a *Adapter) FetchHotel(ctx context.Context, conn *wallet.Connection, hotelID uint64) (Hotel, error) {
	out, err := a.callEscrow(ctx, conn, "getHotel", u256(hotelID))
	if err != nil {
		return Hotel{}, err
	}
	registered, err := output[bool](out, 0, "getHotel")
	if err != nil {
		return Hotel{}, err
	}
	if !registered {
		return Hotel{}, fmt.Errorf("hotel %d: %w", hotelID, ErrNotFound)
	}
	name, err := output[string](out, 1, "getHotel")
	if err != nil {
		return Hotel{}, err
	}
	hotelWallet, err := output[common.Address](out, 2, "getHotel")
	if err != nil {
		return Hotel{}, err
	}
	classCount, err := output[*big.Int](out, 3, "getHotel")
	if err != nil {
		return Hotel{}, err
	}

	out, err = a.callEscrow(ctx, conn, "getHotelClasses", u256(hotelID))
	if err != nil {
		return Hotel{}, err
	}
	memberIDs, err := output[[]*big.Int](out, 0, "getHotelClasses")
	if err != nil {
		return Hotel{}, err
	}

	global, err := a.roomClassIndex(ctx, conn)
	if err != nil {
		return Hotel{}, err
	}

	var r uintReader
	classes := make([]RoomClass, 0, len(memberIDs))
	for _, raw := range memberIDs {
		id := r.read(raw, "classId")
		if r.err != nil {
			break
		}
		class, ok := global[id]
		if !ok {
			return Hotel{}, fmt.Errorf("room class %d of hotel %d: %w", id, hotelID, ErrNotFound)
		}
		classes = append(classes, class)
	}
	hotel := Hotel{
		ID:         hotelID,
		Name:       name,
		Wallet:     hotelWallet,
		ClassCount: r.read(classCount, "classCount"),
		Classes:    classes,
	}
	if r.err != nil {
		return Hotel{}, fmt.Errorf("getHotel: %w", r.err)
	}
	return hotel, nil
}

func (a *Adapter) roomClassIndex(ctx context.Context, conn *wallet.Connection) (map[uint64]RoomClass, error) {
	const method = "getAllRoomClasses"
	out, err := a.callEscrow(ctx, conn, method)
	if err != nil {
		return nil, err
	}
	ids, err := output[[]*big.Int](out, 0, method)
	if err != nil {
		return nil, err
	}
	names, err := output[[]string](out, 1, method)
	if err != nil {
		return nil, err
	}
	prices, err := output[[]*big.Int](out, 2, method)
	if err != nil {
		return nil, err
	}
	if len(names) != len(ids) || len(prices) != len(ids) {
		return nil, fmt.Errorf("%s: %w: room class arrays have mismatched lengths", method, ErrNotFound)
	}

	var r uintReader
	index := make(map[uint64]RoomClass, len(ids))
	for i, raw := range ids {
		id := r.read(raw, "classId")
		index[id] = RoomClass{
			ID:            id,
			Name:          names[i],
			PricePerNight: fixedpoint.Descale(prices[i], contracts.ContractDecimals),
			Active:        true,
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("%s: %w", method, r.err)
	}
	return index, nil
}
