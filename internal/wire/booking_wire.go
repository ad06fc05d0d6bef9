package wire

import (
	"cinema-checkout/internal/adaptor"
	"cinema-checkout/pkg/middleware"
	"cinema-checkout/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(config.JWT.Secret, log))

		// GET /api/user/bookings - View booking history (user's own bookings)
		r.Get("/api/user/bookings", bookingHandler.GetUserBookings)

		// GET /api/user/bookings/{id} - View one of the user's bookings
		r.Get("/api/user/bookings/{id}", bookingHandler.GetUserBooking)
	})

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/bookings", func(r chi.Router) {
		// Require both authentication AND admin role
		r.Use(middleware.Auth(config.JWT.Secret, log))
		r.Use(middleware.Admin(log))

		// GET /api/admin/bookings/{id} - View any booking details (admin)
		r.Get("/{id}", bookingHandler.GetBookingByID)

		// PUT /api/admin/bookings/{id}/cancel - Cancel any booking (admin)
		r.Put("/{id}/cancel", bookingHandler.CancelBooking)
	})
}
