package adaptor

import (
	"errors"
	"io"
	"net/http"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/internal/dto/response"
	"cinema-checkout/internal/gateway"
	"cinema-checkout/internal/usecase"
	"cinema-checkout/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	checkout usecase.CheckoutService
	payments usecase.PaymentCoordinator
	gateway  gateway.PaymentGateway
	log      *zap.Logger
}

func NewPaymentHandler(checkout usecase.CheckoutService, payments usecase.PaymentCoordinator, gw gateway.PaymentGateway, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		checkout: checkout,
		payments: payments,
		gateway:  gw,
		log:      log.With(zap.String("handler", "payment")),
	}
}

// Webhook handles POST /api/payments/webhook (gateway callback, signature checked)
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.gateway.ParseWebhook(payload, r.Header)
	switch {
	case errors.Is(err, gateway.ErrIgnoredEvent):
		h.log.Debug("Webhook event ignored", zap.Error(err))
		utils.ResponseSuccess(w, "ignored", nil)
		return
	case errors.Is(err, gateway.ErrInvalidSignature):
		h.log.Warn("Webhook rejected - bad signature", zap.Error(err))
		utils.ResponseBadRequest(w, "Invalid signature", nil)
		return
	case err != nil:
		h.log.Warn("Webhook rejected", zap.Error(err))
		utils.ResponseBadRequest(w, "Invalid webhook payload", nil)
		return
	}

	session, err := h.checkout.HandleGatewayResult(r.Context(), result.AttemptID, result.Outcome)
	switch {
	case err == nil:
		utils.ResponseSuccess(w, "processed", response.CheckoutSessionToResponse(session))

	case entity.IsIncident(err):
		// processed: refund is flagged, the gateway must not retry
		h.log.Error("Payment captured but seats lost",
			zap.String("attempt_id", result.AttemptID.String()),
			zap.String("gateway_ref", result.GatewayRef),
			zap.Error(err),
		)
		utils.ResponseSuccess(w, "refund_required", nil)

	case errors.Is(err, entity.ErrNotFound):
		h.log.Warn("Webhook for unknown or expired checkout",
			zap.String("attempt_id", result.AttemptID.String()),
			zap.String("outcome", string(result.Outcome)),
			zap.Error(err),
		)
		utils.ResponseSuccess(w, "acknowledged", nil)

	default:
		handleServiceError(h.log, w, err, "handle gateway result")
	}
}

// ==================== ADMIN METHODS ====================

// ListRefunds handles GET /api/admin/payments/refunds (admin only)
func (h *PaymentHandler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.payments.ListRefundRequired(r.Context())
	if err != nil {
		handleServiceError(h.log, w, err, "list refunds")
		return
	}

	resp := make([]response.PaymentAttemptResponse, len(attempts))
	for i, a := range attempts {
		resp[i] = response.PaymentAttemptToResponse(a)
		resp[i].ClientSecret = ""
	}

	utils.ResponseSuccess(w, "success", resp)
}

// Refund handles POST /api/admin/payments/{id}/refund (admin only)
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	attemptID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid payment attempt ID", nil)
		return
	}

	attempt, err := h.payments.Refund(r.Context(), attemptID)
	if err != nil {
		handleServiceError(h.log, w, err, "refund payment")
		return
	}

	resp := response.PaymentAttemptToResponse(attempt)
	resp.ClientSecret = ""
	utils.ResponseSuccess(w, "success", resp)
}
