package gateway

import (
	"fmt"

	"cinema-checkout/pkg/utils"

	"go.uber.org/zap"
)

// New picks the gateway named in config
func New(config *utils.Config, log *zap.Logger) (PaymentGateway, error) {
	switch config.Payment.Gateway {
	case "", "mock":
		log.Warn("Using mock payment gateway")
		return NewMockGateway(), nil
	case "stripe":
		return NewStripeGateway(StripeConfig{
			SecretKey:     config.Payment.StripeSecretKey,
			WebhookSecret: config.Payment.StripeWebhookSecret,
			MinorUnits:    config.Checkout.CurrencyMinorUnits,
		}, log)
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", config.Payment.Gateway)
	}
}
