package entity

import (
	"time"

	"github.com/google/uuid"
)

type CheckoutState string

const (
	StateSelecting       CheckoutState = "selecting"
	StateReviewing       CheckoutState = "reviewing"
	StateAwaitingPayment CheckoutState = "awaiting_payment"
	StateCommitting      CheckoutState = "committing"
	StateConfirmed       CheckoutState = "confirmed"
	StateFailed          CheckoutState = "failed"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	StateSelecting:       {StateReviewing, StateFailed},
	StateReviewing:       {StateSelecting, StateAwaitingPayment, StateFailed},
	StateAwaitingPayment: {StateCommitting, StateFailed},
	StateCommitting:      {StateConfirmed, StateFailed},
}

func (s CheckoutState) CanTransition(to CheckoutState) bool {
	for _, next := range checkoutTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutState) IsTerminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// Failure reasons recorded on a failed session
const (
	FailurePaymentFailed  = "payment_failed"
	FailureSeatConflict   = "post_payment_seat_conflict"
	FailureCommitError    = "commit_error"
	FailureCheckoutCancel = "checkout_canceled"
	FailureHoldExpired    = "hold_expired"
)

// CheckoutSession is a point-in-time view of one checkout
type CheckoutSession struct {
	ID            uuid.UUID     `json:"id"`
	UserID        string        `json:"user_id"`
	Showtime      ShowtimeRef   `json:"showtime"`
	State         CheckoutState `json:"state"`
	Cart          Cart          `json:"cart"`
	Totals        CartTotals    `json:"totals"`
	AttemptID     *uuid.UUID    `json:"attempt_id,omitempty"`
	BookingID     *uuid.UUID    `json:"booking_id,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	ExpiredSeats  []string      `json:"expired_seats,omitempty"` // seats dropped by this interaction
	UpdatedAt     time.Time     `json:"updated_at"`
}
