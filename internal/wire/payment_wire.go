package wire

import (
	"cinema-checkout/internal/adaptor"
	"cinema-checkout/pkg/middleware"
	"cinema-checkout/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wirePayment(
	r chi.Router,
	paymentHandler *adaptor.PaymentHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== GATEWAY CALLBACK ====================
	// POST /api/payments/webhook - Authenticated by the gateway signature, not JWT
	r.Post("/api/payments/webhook", paymentHandler.Webhook)

	// ==================== ADMIN ROUTES ====================
	r.Route("/api/admin/payments", func(r chi.Router) {
		r.Use(middleware.Auth(config.JWT.Secret, log))
		r.Use(middleware.Admin(log))

		// GET /api/admin/payments/refunds - Captured payments without a booking
		r.Get("/refunds", paymentHandler.ListRefunds)

		// POST /api/admin/payments/{id}/refund - Refund through the gateway
		r.Post("/{id}/refund", paymentHandler.Refund)
	})
}
