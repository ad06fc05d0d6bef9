// internal/wire/wire.go
package wire

import (
	"net/http"

	"cinema-checkout/internal/adaptor"
	"cinema-checkout/internal/gateway"
	"cinema-checkout/internal/usecase"
	"cinema-checkout/pkg/middleware"
	"cinema-checkout/pkg/telemetry"
	"cinema-checkout/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App menyimpan semua dependencies
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring menginisialisasi handlers dan router di atas service yang sudah jadi
func Wiring(service *usecase.Service, gw gateway.PaymentGateway, sweeper adaptor.SweeperStats, config *utils.Config, logger *zap.Logger) *App {
	handler := adaptor.NewHandler(service, gw, sweeper, logger)

	router := setupRouter(handler, config, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

// setupRouter konfigurasi Chi router
func setupRouter(
	handler *adaptor.Handler,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(telemetry.Middleware())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS())

	// Apply routes
	wireCatalog(r, handler.Catalog)
	wireCheckout(r, handler.Checkout, config, logger)
	wireBooking(r, handler.Booking, config, logger)
	wirePayment(r, handler.Payment, config, logger)
	wireOps(r, handler.Ops, config, logger)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
