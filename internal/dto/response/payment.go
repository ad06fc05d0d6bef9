package response

import (
	"time"

	"cinema-checkout/internal/data/entity"
)

type PaymentAttemptResponse struct {
	ID            string               `json:"id"`
	SessionID     string               `json:"session_id"`
	UserID        string               `json:"user_id,omitempty"`
	Amount        int64                `json:"amount"`
	Currency      string               `json:"currency"`
	Status        entity.PaymentStatus `json:"status"`
	Gateway       string               `json:"gateway"`
	GatewayRef    string               `json:"gateway_ref,omitempty"`
	ClientSecret  string               `json:"client_secret,omitempty"`
	RefundState   entity.RefundState   `json:"refund_state"`
	FailureReason string               `json:"failure_reason,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func PaymentAttemptToResponse(a *entity.PaymentAttempt) PaymentAttemptResponse {
	return PaymentAttemptResponse{
		ID:            a.ID.String(),
		SessionID:     a.SessionID.String(),
		UserID:        a.UserID,
		Amount:        a.Amount,
		Currency:      a.Currency,
		Status:        a.Status,
		Gateway:       a.Gateway,
		GatewayRef:    a.GatewayRef,
		ClientSecret:  a.ClientSecret,
		RefundState:   a.RefundState,
		FailureReason: a.FailureReason,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}
