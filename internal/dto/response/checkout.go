package response

import (
	"time"

	"cinema-checkout/internal/data/entity"
)

type CartLineResponse struct {
	Kind       string `json:"kind"`
	SeatID     string `json:"seat_id,omitempty"`
	SeatType   string `json:"seat_type,omitempty"`
	FoodItemID string `json:"food_item_id,omitempty"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
	Amount     int64  `json:"amount"`
}

type TotalsResponse struct {
	SeatAmount  int64 `json:"seat_amount"`
	FoodAmount  int64 `json:"food_amount"`
	TotalAmount int64 `json:"total_amount"`
}

type CheckoutSessionResponse struct {
	ID            string               `json:"id"`
	UserID        string               `json:"user_id"`
	Showtime      ShowtimeRefResponse  `json:"showtime"`
	State         entity.CheckoutState `json:"state"`
	Lines         []CartLineResponse   `json:"lines"`
	Totals        TotalsResponse       `json:"totals"`
	AttemptID     *string              `json:"payment_attempt_id,omitempty"`
	BookingID     *string              `json:"booking_id,omitempty"`
	FailureReason string               `json:"failure_reason,omitempty"`
	ExpiredSeats  []string             `json:"expired_seats,omitempty"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

type PaymentStartResponse struct {
	Session CheckoutSessionResponse `json:"session"`
	Payment PaymentAttemptResponse  `json:"payment"`
}

// Helper converters
func CheckoutSessionToResponse(session *entity.CheckoutSession) CheckoutSessionResponse {
	lines := make([]CartLineResponse, len(session.Cart.Lines))
	for i, l := range session.Cart.Lines {
		lines[i] = CartLineResponse{
			Kind:       string(l.Kind),
			SeatID:     l.SeatID,
			SeatType:   string(l.SeatType),
			FoodItemID: l.FoodItemID,
			Name:       l.Name,
			UnitPrice:  l.UnitPrice,
			Quantity:   l.Quantity,
			Amount:     l.Amount(),
		}
	}

	resp := CheckoutSessionResponse{
		ID:       session.ID.String(),
		UserID:   session.UserID,
		Showtime: ShowtimeRefToResponse(session.Showtime),
		State:    session.State,
		Lines:    lines,
		Totals: TotalsResponse{
			SeatAmount:  session.Totals.SeatAmount,
			FoodAmount:  session.Totals.FoodAmount,
			TotalAmount: session.Totals.TotalAmount,
		},
		FailureReason: session.FailureReason,
		ExpiredSeats:  session.ExpiredSeats,
		UpdatedAt:     session.UpdatedAt,
	}
	if session.AttemptID != nil {
		id := session.AttemptID.String()
		resp.AttemptID = &id
	}
	if session.BookingID != nil {
		id := session.BookingID.String()
		resp.BookingID = &id
	}
	return resp
}
