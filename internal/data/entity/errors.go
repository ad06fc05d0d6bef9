package entity

import "errors"

// Checkout error taxonomy. Wrap with fmt.Errorf("...: %w", Err...) and test with errors.Is.
var (
	ErrSeatUnavailable         = errors.New("seat unavailable")
	ErrSeatAlreadyBooked       = errors.New("seat already booked")
	ErrPostPaymentSeatConflict = errors.New("post-payment seat conflict")
	ErrPaymentFailed           = errors.New("payment failed")
	ErrPaymentCanceled         = errors.New("payment canceled")
	ErrHoldExpired             = errors.New("hold expired")
	ErrNotFound                = errors.New("not found")

	ErrInvalidTransition = errors.New("invalid checkout transition")
	ErrEmptyCart         = errors.New("cart has no seats")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrAlreadyPaid       = errors.New("checkout already paid")
	ErrSessionClosed     = errors.New("checkout session closed")

	// the gateway result could not be stored; the gateway must redeliver it
	ErrOutcomeNotRecorded = errors.New("gateway outcome not recorded")
)

// IsConflictError reports seat contention or state errors the user can recover from
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSeatUnavailable) ||
		errors.Is(err, ErrSeatAlreadyBooked) ||
		errors.Is(err, ErrHoldExpired) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrSessionClosed)
}

// IsIncident reports errors that need operator escalation, not just a UI message
func IsIncident(err error) bool {
	return errors.Is(err, ErrPostPaymentSeatConflict)
}
