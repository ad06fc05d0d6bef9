package wire

import (
	"cinema-checkout/internal/adaptor"
	"cinema-checkout/pkg/middleware"
	"cinema-checkout/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireCheckout(
	r chi.Router,
	checkoutHandler *adaptor.CheckoutHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== PROTECTED ROUTES (require auth) ====================
	r.Route("/api/checkout/sessions", func(r chi.Router) {
		r.Use(middleware.Auth(config.JWT.Secret, log))

		// POST /api/checkout/sessions - Open a checkout for a showtime
		r.Post("/", checkoutHandler.Start)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", checkoutHandler.Get)

			// GET /api/checkout/sessions/{id}/events - Server-sent session updates
			r.Get("/events", checkoutHandler.Events)

			// Selecting
			r.Put("/seats/{seatId}", checkoutHandler.SelectSeat)
			r.Delete("/seats/{seatId}", checkoutHandler.DeselectSeat)
			r.Put("/food", checkoutHandler.SetFoodQty)

			// Review and payment
			r.Post("/review", checkoutHandler.Review)
			r.Post("/back", checkoutHandler.Back)
			r.Post("/payment", checkoutHandler.StartPayment)
			r.Post("/payment/retry", checkoutHandler.RetryPayment)
			r.Post("/cancel", checkoutHandler.Cancel)
		})
	})
}
