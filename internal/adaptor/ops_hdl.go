package adaptor

import (
	"net/http"

	"cinema-checkout/internal/worker"
	"cinema-checkout/pkg/utils"

	"go.uber.org/zap"
)

// SweeperStats is implemented by worker.HoldSweeper
type SweeperStats interface {
	GetStats() *worker.HoldSweeperStats
}

type OpsHandler struct {
	sweeper SweeperStats
	log     *zap.Logger
}

func NewOpsHandler(sweeper SweeperStats, log *zap.Logger) *OpsHandler {
	return &OpsHandler{
		sweeper: sweeper,
		log:     log.With(zap.String("handler", "ops")),
	}
}

// GetSweeperStats handles GET /api/admin/ops/sweeper (admin only)
func (h *OpsHandler) GetSweeperStats(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		utils.ResponseJSON(w, http.StatusServiceUnavailable, false, "Hold sweeper is not configured", nil, nil)
		return
	}

	stats := h.sweeper.GetStats()
	h.log.Debug("Sweeper stats requested",
		zap.Bool("running", stats.IsRunning),
		zap.Int64("total_reclaimed", stats.TotalReclaimed),
	)
	utils.ResponseSuccess(w, "success", stats)
}
