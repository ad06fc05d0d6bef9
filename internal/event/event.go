package event

import (
	"context"
	"time"

	"cinema-checkout/internal/data/entity"
)

const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueRefundRequired   = "payment.refund_required"
)

// BookingConfirmed feeds notification display and ticket issuing
type BookingConfirmed struct {
	BookingID   string             `json:"booking_id"`
	OrderID     string             `json:"order_id"`
	UserID      string             `json:"user_id"`
	Showtime    entity.ShowtimeRef `json:"showtime"`
	SeatIDs     []string           `json:"seat_ids"`
	TotalAmount int64              `json:"total_amount"`
	ConfirmedAt time.Time          `json:"confirmed_at"`
}

// RefundRequired is the operator escalation for a captured payment without a booking
type RefundRequired struct {
	AttemptID  string             `json:"attempt_id"`
	SessionID  string             `json:"session_id"`
	UserID     string             `json:"user_id"`
	GatewayRef string             `json:"gateway_ref"`
	Amount     int64              `json:"amount"`
	Currency   string             `json:"currency"`
	Showtime   entity.ShowtimeRef `json:"showtime"`
	SeatIDs    []string           `json:"seat_ids"`
	Reason     string             `json:"reason"`
	RaisedAt   time.Time          `json:"raised_at"`
}

type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, evt BookingConfirmed) error
	PublishRefundRequired(ctx context.Context, evt RefundRequired) error
	Close() error
}
