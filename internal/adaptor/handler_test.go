package adaptor

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"cinema-checkout/internal/data/entity"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"incident", fmt.Errorf("commit: %w: %w", entity.ErrPostPaymentSeatConflict, entity.ErrSeatUnavailable), http.StatusConflict},
		{"not found", fmt.Errorf("showtime x: %w", entity.ErrNotFound), http.StatusNotFound},
		{"bad quantity", fmt.Errorf("popcorn -1: %w", entity.ErrInvalidQuantity), http.StatusBadRequest},
		{"seat held", fmt.Errorf("seat A1: %w", entity.ErrSeatUnavailable), http.StatusConflict},
		{"hold expired", fmt.Errorf("seats [A1]: %w", entity.ErrHoldExpired), http.StatusConflict},
		{"wrong state", entity.ErrInvalidTransition, http.StatusConflict},
		{"gateway down", fmt.Errorf("create intent: %w: %w", entity.ErrPaymentFailed, errors.New("timeout")), http.StatusBadGateway},
		{"outcome not stored", fmt.Errorf("record succeeded outcome: %w: %w", entity.ErrOutcomeNotRecorded, errors.New("conn reset")), http.StatusServiceUnavailable},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleServiceError(zap.NewNop(), rec, tt.err, "test")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
