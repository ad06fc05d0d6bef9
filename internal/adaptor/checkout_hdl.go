package adaptor

import (
	"encoding/json"
	"fmt"
	"net/http"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/internal/dto/request"
	"cinema-checkout/internal/dto/response"
	"cinema-checkout/internal/usecase"
	"cinema-checkout/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	service usecase.CheckoutService
	log     *zap.Logger
}

func NewCheckoutHandler(service usecase.CheckoutService, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		log:     log.With(zap.String("handler", "checkout")),
	}
}

// ownedSession resolves {id} and checks it belongs to the caller. Sessions of
// other users read as not found.
func (h *CheckoutHandler) ownedSession(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return uuid.Nil, false
	}

	sessionID, err := utils.ParseUUID(chi.URLParam(r, "id"))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid session ID", nil)
		return uuid.Nil, false
	}

	session, err := h.service.Get(r.Context(), sessionID)
	if err != nil {
		handleServiceError(h.log, w, err, "get checkout session")
		return uuid.Nil, false
	}
	if session.UserID != userID {
		utils.ResponseNotFound(w, "checkout session not found")
		return uuid.Nil, false
	}
	return sessionID, true
}

func (h *CheckoutHandler) respond(w http.ResponseWriter, session *entity.CheckoutSession, err error, operation string) {
	if err != nil {
		handleServiceError(h.log, w, err, operation)
		return
	}
	utils.ResponseSuccess(w, "success", response.CheckoutSessionToResponse(session))
}

// Start handles POST /api/checkout/sessions (protected)
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.StartCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	session, err := h.service.Start(r.Context(), userID, req.ShowtimeID)
	if err != nil {
		handleServiceError(h.log, w, err, "start checkout")
		return
	}

	utils.ResponseCreated(w, "success", response.CheckoutSessionToResponse(session))
}

// Get handles GET /api/checkout/sessions/{id} (protected)
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	session, err := h.service.Get(r.Context(), sessionID)
	h.respond(w, session, err, "get checkout session")
}

// SelectSeat handles PUT /api/checkout/sessions/{id}/seats/{seatId} (protected)
func (h *CheckoutHandler) SelectSeat(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	seatID := chi.URLParam(r, "seatId")
	if seatID == "" {
		utils.ResponseBadRequest(w, "Seat ID is required", nil)
		return
	}

	session, err := h.service.SelectSeat(r.Context(), sessionID, seatID)
	h.respond(w, session, err, "select seat")
}

// DeselectSeat handles DELETE /api/checkout/sessions/{id}/seats/{seatId} (protected)
func (h *CheckoutHandler) DeselectSeat(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	seatID := chi.URLParam(r, "seatId")
	if seatID == "" {
		utils.ResponseBadRequest(w, "Seat ID is required", nil)
		return
	}

	session, err := h.service.DeselectSeat(r.Context(), sessionID, seatID)
	h.respond(w, session, err, "deselect seat")
}

// SetFoodQty handles PUT /api/checkout/sessions/{id}/food (protected)
func (h *CheckoutHandler) SetFoodQty(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var req request.SetFoodQtyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	session, err := h.service.SetFoodQty(r.Context(), sessionID, req.ItemID, req.Quantity)
	h.respond(w, session, err, "set food quantity")
}

// Review handles POST /api/checkout/sessions/{id}/review (protected)
func (h *CheckoutHandler) Review(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	session, err := h.service.ProceedToReview(r.Context(), sessionID)
	h.respond(w, session, err, "proceed to review")
}

// Back handles POST /api/checkout/sessions/{id}/back (protected)
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	session, err := h.service.BackToSelecting(r.Context(), sessionID)
	h.respond(w, session, err, "back to selecting")
}

// StartPayment handles POST /api/checkout/sessions/{id}/payment (protected)
func (h *CheckoutHandler) StartPayment(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	start, err := h.service.StartPayment(r.Context(), sessionID)
	h.respondPayment(w, start, err, "start payment")
}

// RetryPayment handles POST /api/checkout/sessions/{id}/payment/retry (protected)
func (h *CheckoutHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	start, err := h.service.RetryPayment(r.Context(), sessionID)
	h.respondPayment(w, start, err, "retry payment")
}

func (h *CheckoutHandler) respondPayment(w http.ResponseWriter, start *usecase.PaymentStart, err error, operation string) {
	if err != nil {
		handleServiceError(h.log, w, err, operation)
		return
	}

	utils.ResponseSuccess(w, "success", response.PaymentStartResponse{
		Session: response.CheckoutSessionToResponse(start.Session),
		Payment: response.PaymentAttemptToResponse(start.Attempt),
	})
}

// Cancel handles POST /api/checkout/sessions/{id}/cancel (protected)
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	session, err := h.service.CancelCheckout(r.Context(), sessionID)
	h.respond(w, session, err, "cancel checkout")
}

// Events handles GET /api/checkout/sessions/{id}/events (protected, SSE)
func (h *CheckoutHandler) Events(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.ResponseInternalError(w, "Streaming unsupported")
		return
	}

	updates, unsubscribe, err := h.service.Subscribe(sessionID)
	if err != nil {
		handleServiceError(h.log, w, err, "subscribe checkout session")
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case session, ok := <-updates:
			if !ok {
				return
			}

			data, err := json.Marshal(response.CheckoutSessionToResponse(&session))
			if err != nil {
				h.log.Error("Failed to encode session event", zap.Error(err))
				return
			}
			fmt.Fprintf(w, "event: session\ndata: %s\n\n", data)
			flusher.Flush()

			if session.State.IsTerminal() {
				return
			}
		}
	}
}
