package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"cinema-checkout/internal/data/entity"

	"github.com/google/uuid"
)

// MockGateway accepts every intent and takes outcomes from plain JSON callbacks.
// Used for local runs and tests.
type MockGateway struct {
	mu      sync.Mutex
	intents map[string]*IntentResponse // idempotency key -> response
	refunds map[string]int64
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		intents: make(map[string]*IntentResponse),
		refunds: make(map[string]int64),
	}
}

func (g *MockGateway) CreatePaymentIntent(ctx context.Context, req *IntentRequest) (*IntentResponse, error) {
	if req == nil || req.IdempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if resp, ok := g.intents[req.IdempotencyKey]; ok {
		cp := *resp
		return &cp, nil
	}

	ref := "mock_pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	resp := &IntentResponse{
		GatewayRef:   ref,
		ClientSecret: ref + "_secret",
		Status:       "requires_payment_method",
	}
	g.intents[req.IdempotencyKey] = resp

	cp := *resp
	return &cp, nil
}

func (g *MockGateway) Refund(ctx context.Context, gatewayRef string, amount int64) error {
	if gatewayRef == "" {
		return fmt.Errorf("gateway ref is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.refunds[gatewayRef] += amount
	return nil
}

type mockWebhook struct {
	AttemptID  string `json:"attempt_id"`
	GatewayRef string `json:"gateway_ref"`
	Outcome    string `json:"outcome"`
}

func (g *MockGateway) ParseWebhook(payload []byte, header http.Header) (*WebhookResult, error) {
	var body mockWebhook
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("decode mock webhook: %w", err)
	}

	attemptID, err := uuid.Parse(body.AttemptID)
	if err != nil {
		return nil, fmt.Errorf("invalid attempt_id %q: %w", body.AttemptID, err)
	}

	outcome := entity.GatewayOutcome(body.Outcome)
	if !outcome.Valid() {
		return nil, fmt.Errorf("outcome %q: %w", body.Outcome, ErrIgnoredEvent)
	}

	return &WebhookResult{
		AttemptID:  attemptID,
		GatewayRef: body.GatewayRef,
		Outcome:    outcome,
	}, nil
}

func (g *MockGateway) Name() string {
	return "mock"
}

// IntentCount is the number of distinct intents created
func (g *MockGateway) IntentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.intents)
}

func (g *MockGateway) Refunded(gatewayRef string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunds[gatewayRef]
}
