package adaptor

import (
	"errors"
	"net/http"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/internal/gateway"
	"cinema-checkout/internal/usecase"
	"cinema-checkout/pkg/utils"

	"go.uber.org/zap"
)

type Handler struct {
	Catalog  *CatalogHandler
	Checkout *CheckoutHandler
	Booking  *BookingHandler
	Payment  *PaymentHandler
	Ops      *OpsHandler
}

func NewHandler(service *usecase.Service, gw gateway.PaymentGateway, sweeper SweeperStats, log *zap.Logger) *Handler {
	return &Handler{
		Catalog:  NewCatalogHandler(service.Catalog, log),
		Checkout: NewCheckoutHandler(service.Checkout, log),
		Booking:  NewBookingHandler(service.Booking, log),
		Payment:  NewPaymentHandler(service.Checkout, service.Payment, gw, log),
		Ops:      NewOpsHandler(sweeper, log),
	}
}

// handleServiceError maps the checkout error taxonomy onto HTTP responses
func handleServiceError(log *zap.Logger, w http.ResponseWriter, err error, operation string) {
	errMsg := err.Error()

	switch {
	case entity.IsIncident(err):
		log.Error(operation+" failed - payment captured without booking",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseConflict(w, "Seats were taken before your booking completed; your payment will be refunded", nil)

	case errors.Is(err, entity.ErrOutcomeNotRecorded):
		log.Error(operation+" failed - storage unavailable",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseJSON(w, http.StatusServiceUnavailable, false, "Temporarily unavailable, please retry", nil, nil)

	case errors.Is(err, entity.ErrNotFound):
		log.Warn(operation+" failed - not found",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseNotFound(w, errMsg)

	case errors.Is(err, entity.ErrInvalidQuantity):
		log.Warn("Invalid input for "+operation,
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseBadRequest(w, errMsg, nil)

	case entity.IsConflictError(err):
		log.Warn(operation+" failed - conflict",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseConflict(w, errMsg, nil)

	case errors.Is(err, entity.ErrPaymentFailed), errors.Is(err, entity.ErrPaymentCanceled):
		log.Error(operation+" failed - payment gateway",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseBadGateway(w, "Payment provider unavailable, please retry")

	default:
		log.Error(operation+" failed",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
