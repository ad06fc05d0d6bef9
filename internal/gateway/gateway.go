package gateway

import (
	"context"
	"errors"
	"net/http"

	"cinema-checkout/internal/data/entity"

	"github.com/google/uuid"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrIgnoredEvent     = errors.New("webhook event not handled")
)

// PaymentGateway is the outbound port to the payment provider
type PaymentGateway interface {
	// CreatePaymentIntent is safe to retry with the same idempotency key
	CreatePaymentIntent(ctx context.Context, req *IntentRequest) (*IntentResponse, error)

	// Refund returns money for a captured payment
	Refund(ctx context.Context, gatewayRef string, amount int64) error

	// ParseWebhook verifies and decodes a provider callback into (attempt, outcome)
	ParseWebhook(payload []byte, header http.Header) (*WebhookResult, error)

	Name() string
}

type IntentRequest struct {
	AttemptID      uuid.UUID
	SessionID      uuid.UUID
	Amount         int64 // whole currency units
	Currency       string
	IdempotencyKey string
	Description    string
}

type IntentResponse struct {
	GatewayRef   string
	ClientSecret string
	Status       string
}

type WebhookResult struct {
	AttemptID  uuid.UUID
	GatewayRef string
	Outcome    entity.GatewayOutcome
}
