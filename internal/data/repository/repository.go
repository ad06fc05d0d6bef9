package repository

import (
	"cinema-checkout/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Showtime ShowtimeRepository
	Seat     SeatRepository
	Food     FoodRepository
	Booking  BookingRepository
	Payment  PaymentRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Showtime: NewShowtimeRepository(db, log),
		Seat:     NewSeatRepository(db, log),
		Food:     NewFoodRepository(db, log),
		Booking:  NewBookingRepository(db, log),
		Payment:  NewPaymentRepository(db, log),
	}
}
