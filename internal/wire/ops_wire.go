package wire

import (
	"cinema-checkout/internal/adaptor"
	"cinema-checkout/pkg/middleware"
	"cinema-checkout/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireOps(
	r chi.Router,
	opsHandler *adaptor.OpsHandler,
	config *utils.Config,
	log *zap.Logger,
) {
	r.Route("/api/admin/ops", func(r chi.Router) {
		r.Use(middleware.Auth(config.JWT.Secret, log))
		r.Use(middleware.Admin(log))

		// GET /api/admin/ops/sweeper - Holds reclaimed and sessions evicted so far
		r.Get("/sweeper", opsHandler.GetSweeperStats)
	})
}
