package escrow

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Inn-Chain/chain-hotel-bookings/internal/wallet"
)

// Client abstracts the on-chain escrow interaction.
type Client interface {
	ApproveSpend(ctx context.Context, conn *wallet.Connection, amount string) (TxReceipt, error)
	CheckAllowance(ctx context.Context, conn *wallet.Connection, owner common.Address) (string, error)
	GetBalance(ctx context.Context, conn *wallet.Connection, owner common.Address) (string, error)

	CreateBooking(ctx context.Context, conn *wallet.Connection, hotelID, roomClassID, nights uint64, deposit string) (TxReceipt, error)
	ConfirmCheckIn(ctx context.Context, conn *wallet.Connection, bookingID uint64) (TxReceipt, error)
	RefundDeposit(ctx context.Context, conn *wallet.Connection, bookingID uint64) (TxReceipt, error)
	ChargeDeposit(ctx context.Context, conn *wallet.Connection, bookingID uint64, amount string) (TxReceipt, error)
	FullRefund(ctx context.Context, conn *wallet.Connection, bookingID uint64) (TxReceipt, error)

	FetchBooking(ctx context.Context, conn *wallet.Connection, bookingID uint64) (Booking, error)
	FetchAllHotels(ctx context.Context, conn *wallet.Connection) ([]Hotel, error)
	FetchHotel(ctx context.Context, conn *wallet.Connection, hotelID uint64) (Hotel, error)
	FetchCustomerBookings(ctx context.Context, conn *wallet.Connection) ([]BookingDetails, error)

	SubscribeBookingCreated(ctx context.Context, conn *wallet.Connection, fn func(BookingCreated)) (*Subscription, error)
	SubscribeCheckInConfirmed(ctx context.Context, conn *wallet.Connection, fn func(CheckInConfirmed)) (*Subscription, error)
}

var _ Client = (*Adapter)(nil)
