package response

import (
	"time"

	"cinema-checkout/internal/data/entity"
)

type SeatResponse struct {
	SeatID      string `json:"seat_id"`
	SeatRow     string `json:"seat_row"`
	SeatColumn  int    `json:"seat_column"`
	SeatType    string `json:"seat_type"`
	Price       int64  `json:"price"`
	IsAvailable bool   `json:"is_available"`
}

// SeatMapResponse shows committed occupancy only; a held seat still reads
// as available until it is booked.
type SeatMapResponse struct {
	Showtime   ShowtimeRefResponse `json:"showtime"`
	MovieTitle string              `json:"movie_title"`
	ScreenName string              `json:"screen_name"`
	ScreenType string              `json:"screen_type"`
	Language   string              `json:"language"`
	StartsAt   time.Time           `json:"starts_at"`
	Prices     map[string]int64    `json:"prices"`
	Seats      []SeatResponse      `json:"seats"`
}

type FoodItemResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Helper converters
func SeatToResponse(seat entity.Seat) SeatResponse {
	return SeatResponse{
		SeatID:      seat.SeatID,
		SeatRow:     seat.Row,
		SeatColumn:  seat.Column,
		SeatType:    string(seat.Type),
		Price:       seat.Price,
		IsAvailable: !seat.Booked,
	}
}

func SeatMapToResponse(showtime *entity.Showtime, seats []entity.Seat) SeatMapResponse {
	prices := make(map[string]int64, len(showtime.Prices))
	for t, p := range showtime.Prices {
		prices[string(t)] = p
	}

	seatResponses := make([]SeatResponse, len(seats))
	for i, seat := range seats {
		seatResponses[i] = SeatToResponse(seat)
	}

	return SeatMapResponse{
		Showtime:   ShowtimeRefToResponse(showtime.Ref),
		MovieTitle: showtime.MovieTitle,
		ScreenName: showtime.ScreenName,
		ScreenType: showtime.ScreenType,
		Language:   showtime.Language,
		StartsAt:   showtime.StartsAt,
		Prices:     prices,
		Seats:      seatResponses,
	}
}

func FoodItemToResponse(item *entity.FoodItem) FoodItemResponse {
	return FoodItemResponse{
		ID:    item.ID,
		Name:  item.Name,
		Price: item.Price,
	}
}
