package gateway

import (
	"context"
	"net/http"
	"testing"

	"cinema-checkout/internal/data/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGateway_IntentIsIdempotent(t *testing.T) {
	g := NewMockGateway()
	ctx := context.Background()
	req := &IntentRequest{AttemptID: uuid.New(), Amount: 540, Currency: "inr", IdempotencyKey: "key-1"}

	first, err := g.CreatePaymentIntent(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, first.GatewayRef, "mock_pi_")
	assert.Equal(t, first.GatewayRef+"_secret", first.ClientSecret)

	second, err := g.CreatePaymentIntent(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.GatewayRef, second.GatewayRef)
	assert.Equal(t, 1, g.IntentCount())

	req.IdempotencyKey = "key-2"
	third, err := g.CreatePaymentIntent(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.GatewayRef, third.GatewayRef)
	assert.Equal(t, 2, g.IntentCount())
}

func TestMockGateway_RejectsBadIntent(t *testing.T) {
	g := NewMockGateway()
	ctx := context.Background()

	_, err := g.CreatePaymentIntent(ctx, &IntentRequest{Amount: 100})
	assert.Error(t, err)

	_, err = g.CreatePaymentIntent(ctx, &IntentRequest{Amount: 0, IdempotencyKey: "k"})
	assert.Error(t, err)
}

func TestMockGateway_Refund(t *testing.T) {
	g := NewMockGateway()

	require.NoError(t, g.Refund(context.Background(), "mock_pi_1", 300))
	assert.Equal(t, int64(300), g.Refunded("mock_pi_1"))

	assert.Error(t, g.Refund(context.Background(), "", 300))
}

func TestMockGateway_ParseWebhook(t *testing.T) {
	g := NewMockGateway()
	attemptID := uuid.New()

	tests := []struct {
		name    string
		payload string
		outcome entity.GatewayOutcome
		ignored bool
		wantErr bool
	}{
		{
			name:    "succeeded",
			payload: `{"attempt_id":"` + attemptID.String() + `","gateway_ref":"mock_pi_1","outcome":"succeeded"}`,
			outcome: entity.OutcomeSucceeded,
		},
		{
			name:    "canceled",
			payload: `{"attempt_id":"` + attemptID.String() + `","outcome":"canceled"}`,
			outcome: entity.OutcomeCanceled,
		},
		{
			name:    "unknown outcome is ignored",
			payload: `{"attempt_id":"` + attemptID.String() + `","outcome":"processing"}`,
			ignored: true,
			wantErr: true,
		},
		{
			name:    "bad attempt id",
			payload: `{"attempt_id":"nope","outcome":"failed"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			payload: `<xml/>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := g.ParseWebhook([]byte(tt.payload), http.Header{})
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.ignored, errorsIs(err, ErrIgnoredEvent))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, attemptID, result.AttemptID)
			assert.Equal(t, tt.outcome, result.Outcome)
		})
	}
}
