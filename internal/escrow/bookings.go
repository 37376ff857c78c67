package escrow

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Inn-Chain/chain-hotel-bookings/internal/contracts"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/fixedpoint"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/wallet"
)

// bookingRecord matches the getBooking tuple; field order follows the ABI.
type bookingRecord struct {
	Id          *big.Int
	HotelId     *big.Int
	RoomClassId *big.Int
	Customer    common.Address
	Nights      *big.Int
	RoomCost    *big.Int
	Deposit     *big.Int
	CheckedIn   bool
	Settled     bool
	CreatedAt   *big.Int
}

// CreateBooking locks room cost plus deposit in escrow. The deposit is scaled at the
// contract's fixed 18 decimals, not the token's.
func (a *Adapter) CreateBooking(ctx context.Context, conn *wallet.Connection, hotelID, roomClassID, nights uint64, deposit string) (TxReceipt, error) {
	const method = "createBooking"
	value, err := fixedpoint.Scale(deposit, contracts.ContractDecimals)
	if err != nil {
		a.metrics.observeTx(method, err)
		return TxReceipt{}, fmt.Errorf("%s: %w", method, err)
	}
	return a.transact(ctx, conn, false, method, u256(hotelID), u256(roomClassID), u256(nights), value)
}

// ConfirmCheckIn releases the room cost to the hotel.
func (a *Adapter) ConfirmCheckIn(ctx context.Context, conn *wallet.Connection, bookingID uint64) (TxReceipt, error) {
	return a.transact(ctx, conn, false, "confirmCheckIn", u256(bookingID))
}

// RefundDeposit returns the whole deposit to the customer after checkout.
func (a *Adapter) RefundDeposit(ctx context.Context, conn *wallet.Connection, bookingID uint64) (TxReceipt, error) {
	return a.transact(ctx, conn, false, "refundDeposit", u256(bookingID))
}

// ChargeDeposit keeps amount of the deposit for the hotel and refunds the rest. The
// amount is scaled by the token's decimals(), unlike the deposit at creation.
func (a *Adapter) ChargeDeposit(ctx context.Context, conn *wallet.Connection, bookingID uint64, amount string) (TxReceipt, error) {
	const method = "chargeDeposit"
	if err := fixedpoint.Validate(amount); err != nil {
		a.metrics.observeTx(method, err)
		return TxReceipt{}, fmt.Errorf("%s: %w", method, err)
	}
	if err := a.requireSigner(conn); err != nil {
		a.metrics.observeTx(method, err)
		return TxReceipt{}, fmt.Errorf("%s: %w", method, err)
	}
	decimals, err := a.tokenDecimals(ctx, conn)
	if err != nil {
		a.metrics.observeTx(method, err)
		return TxReceipt{}, err
	}
	value, err := fixedpoint.Scale(amount, decimals)
	if err != nil {
		a.metrics.observeTx(method, err)
		return TxReceipt{}, fmt.Errorf("%s: %w", method, err)
	}
	return a.transact(ctx, conn, false, method, u256(bookingID), value)
}

// FullRefund returns room cost and deposit before check-in.
func (a *Adapter) FullRefund(ctx context.Context, conn *wallet.Connection, bookingID uint64) (TxReceipt, error) {
	return a.transact(ctx, conn, false, "fullRefund", u256(bookingID))
}

func (a *Adapter) FetchBooking(ctx context.Context, conn *wallet.Connection, bookingID uint64) (Booking, error) {
	decimals, err := a.tokenDecimals(ctx, conn)
	if err != nil {
		return Booking{}, err
	}
	return a.fetchBooking(ctx, conn, bookingID, decimals)
}

func (a *Adapter) fetchBooking(ctx context.Context, conn *wallet.Connection, bookingID uint64, tokenDecimals uint8) (Booking, error) {
	const method = "getBooking"
	out, err := a.callEscrow(ctx, conn, method, u256(bookingID))
	if err != nil {
		return Booking{}, err
	}
	if len(out) == 0 {
		return Booking{}, fmt.Errorf("%s: empty result", method)
	}
	rec, err := convertBooking(out[0])
	if err != nil {
		return Booking{}, fmt.Errorf("%s: %w", method, err)
	}
	// Unknown ids decode as the zero record.
	if rec.Customer == (common.Address{}) {
		return Booking{}, fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}

	var r uintReader
	b := Booking{
		ID:          r.read(rec.Id, "id"),
		HotelID:     r.read(rec.HotelId, "hotelId"),
		RoomClassID: r.read(rec.RoomClassId, "roomClassId"),
		Customer:    rec.Customer,
		Nights:      r.read(rec.Nights, "nights"),
		RoomCost:    fixedpoint.Descale(rec.RoomCost, tokenDecimals),
		Deposit:     fixedpoint.Descale(rec.Deposit, contracts.ContractDecimals),
		CheckedIn:   rec.CheckedIn,
		Settled:     rec.Settled,
		CreatedAt:   time.Unix(int64(r.read(rec.CreatedAt, "createdAt")), 0).UTC(),
	}
	if r.err != nil {
		return Booking{}, fmt.Errorf("%s: %w", method, r.err)
	}
	return b, nil
}

func convertBooking(v interface{}) (rec *bookingRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode booking tuple: %v", r)
		}
	}()
	return abi.ConvertType(v, new(bookingRecord)).(*bookingRecord), nil
}
