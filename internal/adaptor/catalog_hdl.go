package adaptor

import (
	"net/http"

	"cinema-checkout/internal/usecase"
	"cinema-checkout/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CatalogHandler struct {
	service usecase.CatalogService
	log     *zap.Logger
}

func NewCatalogHandler(service usecase.CatalogService, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		log:     log.With(zap.String("handler", "catalog")),
	}
}

// GetSeatMap handles GET /api/showtimes/{showtimeId}/seats (public)
func (h *CatalogHandler) GetSeatMap(w http.ResponseWriter, r *http.Request) {
	showtimeID := chi.URLParam(r, "showtimeId")
	if showtimeID == "" {
		utils.ResponseBadRequest(w, "Showtime ID is required", nil)
		return
	}

	seatMap, err := h.service.GetSeatMap(r.Context(), showtimeID)
	if err != nil {
		handleServiceError(h.log, w, err, "get seat map")
		return
	}

	utils.ResponseSuccess(w, "success", seatMap)
}

// GetFoodMenu handles GET /api/food (public)
func (h *CatalogHandler) GetFoodMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.service.GetFoodMenu(r.Context())
	if err != nil {
		handleServiceError(h.log, w, err, "get food menu")
		return
	}

	utils.ResponseSuccess(w, "success", menu)
}
