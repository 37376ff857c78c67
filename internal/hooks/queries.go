package hooks

import (
	"github.com/rs/zerolog"

	"github.com/Inn-Chain/chain-hotel-bookings/internal/escrow"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/wallet"
)

// NewHotelsQuery follows the session and keeps the full hotel listing.
func NewHotelsQuery(client escrow.Client, session *wallet.Session, log zerolog.Logger) *Query[[]escrow.Hotel] {
	return New[[]escrow.Hotel]("hotels", session, client.FetchAllHotels, []escrow.Hotel{}, log)
}

// NewCustomerBookingsQuery follows the session and keeps the connected account's bookings.
func NewCustomerBookingsQuery(client escrow.Client, session *wallet.Session, log zerolog.Logger) *Query[[]escrow.BookingDetails] {
	return New[[]escrow.BookingDetails]("bookings", session, client.FetchCustomerBookings, []escrow.BookingDetails{}, log)
}
