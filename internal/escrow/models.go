package escrow

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type RoomClass struct {
	ID            uint64 `json:"id"`
	Name          string `json:"name"`
	PricePerNight string `json:"pricePerNight"`
	Active        bool   `json:"isActive"`
}

type Hotel struct {
	ID         uint64         `json:"id"`
	Name       string         `json:"name"`
	Wallet     common.Address `json:"wallet"`
	ClassCount uint64         `json:"classCount"`
	Classes    []RoomClass    `json:"classes"`
}

// Class returns the hotel's room class with the given id.
func (h Hotel) Class(id uint64) (RoomClass, bool) {
	for _, c := range h.Classes {
		if c.ID == id {
			return c, true
		}
	}
	return RoomClass{}, false
}

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusCheckedIn BookingStatus = "checked-in"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

// Booking mirrors the contract's booking record. RoomCost is in token units and
// Deposit in the contract's 18-decimal units, both formatted as decimal strings.
type Booking struct {
	ID          uint64         `json:"id"`
	HotelID     uint64         `json:"hotelId"`
	RoomClassID uint64         `json:"roomClassId"`
	Customer    common.Address `json:"customer"`
	Nights      uint64         `json:"nights"`
	RoomCost    string         `json:"roomCost"`
	Deposit     string         `json:"deposit"`
	CheckedIn   bool           `json:"checkedIn"`
	Settled     bool           `json:"settled"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Status derives the display status from the two escrow flags. A settled booking
// that never checked in was fully refunded.
func (b Booking) Status() BookingStatus {
	switch {
	case b.Settled && b.CheckedIn:
		return StatusCompleted
	case b.Settled:
		return StatusCancelled
	case b.CheckedIn:
		return StatusCheckedIn
	default:
		return StatusPending
	}
}

// BookingDetails is a booking joined with its hotel and room class for listing.
type BookingDetails struct {
	Booking
	HotelName     string        `json:"hotelName"`
	ClassName     string        `json:"className"`
	PricePerNight string        `json:"pricePerNight"`
	TotalAmount   string        `json:"totalAmount"`
	State         BookingStatus `json:"status"`
}

// TxReceipt summarises a mined transaction.
type TxReceipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

type BookingCreated struct {
	BookingID   uint64
	HotelID     uint64
	Customer    common.Address
	TxHash      common.Hash
	BlockNumber uint64
}

type CheckInConfirmed struct {
	BookingID        uint64
	RoomCostReleased string
	TxHash           common.Hash
	BlockNumber      uint64
}
