package response

import (
	"time"

	"cinema-checkout/internal/data/entity"
)

type ShowtimeRefResponse struct {
	PlaceID    string `json:"place_id"`
	ScreenID   string `json:"screen_id"`
	ShowtimeID string `json:"showtime_id"`
}

type BookingSeatResponse struct {
	SeatID string `json:"seat_id"`
	Type   string `json:"seat_type"`
	Price  int64  `json:"price"`
}

type BookingFoodResponse struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type BookingResponse struct {
	ID          string                `json:"id"`
	OrderID     string                `json:"order_id"`
	UserID      string                `json:"user_id"`
	AttemptID   string                `json:"payment_attempt_id"`
	Showtime    ShowtimeRefResponse   `json:"showtime"`
	Seats       []BookingSeatResponse `json:"seats"`
	Food        []BookingFoodResponse `json:"food"`
	SeatAmount  int64                 `json:"seat_amount"`
	FoodAmount  int64                 `json:"food_amount"`
	TotalAmount int64                 `json:"total_amount"`
	Status      entity.BookingStatus  `json:"status"`
	CreatedAt   time.Time             `json:"created_at"`
}

// Helper converters
func ShowtimeRefToResponse(ref entity.ShowtimeRef) ShowtimeRefResponse {
	return ShowtimeRefResponse{
		PlaceID:    ref.PlaceID,
		ScreenID:   ref.ScreenID,
		ShowtimeID: ref.ShowtimeID,
	}
}

func BookingToResponse(booking *entity.Booking) BookingResponse {
	seats := make([]BookingSeatResponse, len(booking.Seats))
	for i, s := range booking.Seats {
		seats[i] = BookingSeatResponse{
			SeatID: s.SeatID,
			Type:   string(s.Type),
			Price:  s.Price,
		}
	}

	food := make([]BookingFoodResponse, len(booking.Food))
	for i, f := range booking.Food {
		food[i] = BookingFoodResponse{
			ItemID:    f.ItemID,
			Name:      f.Name,
			UnitPrice: f.UnitPrice,
			Quantity:  f.Quantity,
		}
	}

	return BookingResponse{
		ID:          booking.ID.String(),
		OrderID:     booking.OrderID,
		UserID:      booking.UserID,
		AttemptID:   booking.AttemptID.String(),
		Showtime:    ShowtimeRefToResponse(booking.Showtime),
		Seats:       seats,
		Food:        food,
		SeatAmount:  booking.SeatAmount,
		FoodAmount:  booking.FoodAmount,
		TotalAmount: booking.TotalAmount,
		Status:      booking.Status,
		CreatedAt:   booking.CreatedAt,
	}
}
