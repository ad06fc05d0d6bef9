package entity

import (
	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCanceled  PaymentStatus = "canceled"
)

func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}

// GatewayOutcome is what a gateway callback reports for an attempt
type GatewayOutcome string

const (
	OutcomeSucceeded GatewayOutcome = "succeeded"
	OutcomeFailed    GatewayOutcome = "failed"
	OutcomeCanceled  GatewayOutcome = "canceled"
)

func (o GatewayOutcome) Valid() bool {
	switch o {
	case OutcomeSucceeded, OutcomeFailed, OutcomeCanceled:
		return true
	}
	return false
}

func (o GatewayOutcome) Status() PaymentStatus {
	return PaymentStatus(o)
}

type RefundState string

const (
	RefundNone     RefundState = "none"
	RefundRequired RefundState = "required"
	RefundDone     RefundState = "refunded"
)

// PaymentAttempt ID doubles as the gateway idempotency key
type PaymentAttempt struct {
	Base
	SessionID     uuid.UUID     `db:"session_id"`
	UserID        string        `db:"user_id"`
	Amount        int64         `db:"amount"`
	Currency      string        `db:"currency"`
	Status        PaymentStatus `db:"status"`
	Gateway       string        `db:"gateway"`
	GatewayRef    string        `db:"gateway_ref"`
	ClientSecret  string        `db:"-"`
	RefundState   RefundState   `db:"refund_state"`
	FailureReason string        `db:"failure_reason"`
}

func (a *PaymentAttempt) IdempotencyKey() string {
	return a.ID.String()
}
