package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/pkg/utils"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

const (
	metaAttemptID = "attempt_id"
	metaSessionID = "session_id"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	MinorUnits    int64
}

// StripeGateway implements PaymentGateway with Stripe PaymentIntents
type StripeGateway struct {
	config StripeConfig
	log    *zap.Logger
}

func NewStripeGateway(config StripeConfig, log *zap.Logger) (*StripeGateway, error) {
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	if config.WebhookSecret == "" {
		return nil, fmt.Errorf("stripe webhook secret is required")
	}

	stripe.Key = config.SecretKey

	return &StripeGateway{
		config: config,
		log:    log.With(zap.String("gateway", "stripe")),
	}, nil
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req *IntentRequest) (*IntentResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("payment intent request is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(utils.ToMinorUnits(req.Amount, g.config.MinorUnits)),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			metaAttemptID: req.AttemptID.String(),
			metaSessionID: req.SessionID.String(),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)

	pi, err := paymentintent.New(params)
	if err != nil {
		g.log.Error("Failed to create payment intent",
			zap.Error(err),
			zap.String("attempt_id", req.AttemptID.String()),
		)
		return nil, fmt.Errorf("create payment intent for attempt %s: %w", req.AttemptID.String(), err)
	}

	return &IntentResponse{
		GatewayRef:   pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, gatewayRef string, amount int64) error {
	if gatewayRef == "" {
		return fmt.Errorf("gateway ref is required")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(gatewayRef),
		Amount:        stripe.Int64(utils.ToMinorUnits(amount, g.config.MinorUnits)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + gatewayRef)

	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("refund payment intent %s: %w", gatewayRef, err)
	}

	return nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, header http.Header) (*WebhookResult, error) {
	sig := header.Get("Stripe-Signature")
	if sig == "" {
		return nil, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, g.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		g.log.Warn("Failed to verify webhook signature", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var outcome entity.GatewayOutcome
	switch event.Type {
	case "payment_intent.succeeded":
		outcome = entity.OutcomeSucceeded
	case "payment_intent.canceled":
		outcome = entity.OutcomeCanceled
	case "payment_intent.payment_failed":
		// a declined card leaves the intent in requires_payment_method; the
		// customer can retry it and it may still succeed, so the attempt stays open
	default:
		return nil, fmt.Errorf("event %s: %w", event.Type, ErrIgnoredEvent)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	if outcome == "" {
		fields := []zap.Field{zap.String("payment_intent", pi.ID), zap.String("attempt_id", pi.Metadata[metaAttemptID])}
		if pi.LastPaymentError != nil {
			fields = append(fields, zap.String("decline_code", string(pi.LastPaymentError.DeclineCode)), zap.String("error", pi.LastPaymentError.Msg))
		}
		g.log.Info("Payment attempt declined, intent still payable", fields...)
		return nil, fmt.Errorf("event %s: intent still payable: %w", event.Type, ErrIgnoredEvent)
	}

	attemptID, err := uuid.Parse(pi.Metadata[metaAttemptID])
	if err != nil {
		return nil, fmt.Errorf("payment intent %s has no attempt id: %w", pi.ID, ErrIgnoredEvent)
	}

	return &WebhookResult{
		AttemptID:  attemptID,
		GatewayRef: pi.ID,
		Outcome:    outcome,
	}, nil
}

func (g *StripeGateway) Name() string {
	return "stripe"
}
