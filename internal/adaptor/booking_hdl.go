package adaptor

import (
	"net/http"

	"cinema-checkout/internal/dto/request"
	"cinema-checkout/internal/usecase"
	"cinema-checkout/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service usecase.BookingService
	log     *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log.With(zap.String("handler", "booking")),
	}
}

// GetUserBookings handles GET /api/user/bookings (protected)
func (h *BookingHandler) GetUserBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	req := request.ParsePageQuery(r.URL.Query())

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	bookings, err := h.service.GetUserBookings(r.Context(), userID, req)
	if err != nil {
		handleServiceError(h.log, w, err, "get user bookings")
		return
	}

	utils.ResponseSuccess(w, "success", bookings)
}

// GetUserBooking handles GET /api/user/bookings/{id} (protected)
func (h *BookingHandler) GetUserBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	bookingID := chi.URLParam(r, "id")
	if _, err := utils.ParseUUID(bookingID); err != nil {
		utils.ResponseBadRequest(w, "Invalid booking ID", nil)
		return
	}

	booking, err := h.service.GetUserBooking(r.Context(), userID, bookingID)
	if err != nil {
		handleServiceError(h.log, w, err, "get user booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// ==================== ADMIN METHODS ====================

// GetBookingByID handles GET /api/admin/bookings/{id} (admin only)
func (h *BookingHandler) GetBookingByID(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")
	if _, err := utils.ParseUUID(bookingID); err != nil {
		utils.ResponseBadRequest(w, "Invalid booking ID", nil)
		return
	}

	booking, err := h.service.GetBookingByID(r.Context(), bookingID)
	if err != nil {
		handleServiceError(h.log, w, err, "get booking by ID")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// CancelBooking handles PUT /api/admin/bookings/{id}/cancel (admin only)
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "id")
	if _, err := utils.ParseUUID(bookingID); err != nil {
		utils.ResponseBadRequest(w, "Invalid booking ID", nil)
		return
	}

	if err := h.service.CancelBooking(r.Context(), bookingID); err != nil {
		handleServiceError(h.log, w, err, "cancel booking")
		return
	}

	utils.ResponseSuccess(w, "success", nil)
}
