package entity

import (
	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type BookingSeat struct {
	SeatID string   `db:"seat_id" json:"seat_id"`
	Type   SeatType `db:"seat_type" json:"seat_type"`
	Price  int64    `db:"price" json:"price"`
}

type BookingFood struct {
	ItemID    string `db:"item_id" json:"item_id"`
	Name      string `db:"name" json:"name"`
	UnitPrice int64  `db:"unit_price" json:"unit_price"`
	Quantity  int    `db:"quantity" json:"quantity"`
}

// Booking is written once at commit; only Status changes afterwards
type Booking struct {
	Base
	OrderID     string        `db:"order_id"`
	SessionID   uuid.UUID     `db:"session_id"`
	UserID      string        `db:"user_id"`
	AttemptID   uuid.UUID     `db:"attempt_id"`
	Showtime    ShowtimeRef   `db:"-"`
	Seats       []BookingSeat `db:"-"`
	Food        []BookingFood `db:"-"`
	SeatAmount  int64         `db:"seat_amount"`
	FoodAmount  int64         `db:"food_amount"`
	TotalAmount int64         `db:"total_amount"`
	Status      BookingStatus `db:"status"`
}

func (b *Booking) SeatIDs() []string {
	ids := make([]string, len(b.Seats))
	for i, s := range b.Seats {
		ids[i] = s.SeatID
	}
	return ids
}
