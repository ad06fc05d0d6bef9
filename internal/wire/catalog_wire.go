package wire

import (
	"cinema-checkout/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireCatalog(r chi.Router, catalogHandler *adaptor.CatalogHandler) {
	// ==================== PUBLIC ROUTES ====================
	// GET /api/showtimes/{showtimeId}/seats - Seat map with committed occupancy
	r.Get("/api/showtimes/{showtimeId}/seats", catalogHandler.GetSeatMap)

	// GET /api/food - Active food and beverage menu
	r.Get("/api/food", catalogHandler.GetFoodMenu)
}
