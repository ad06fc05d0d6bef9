package usecase

import (
	"fmt"

	"cinema-checkout/internal/data/repository"
	"cinema-checkout/internal/event"
	"cinema-checkout/internal/gateway"
	"cinema-checkout/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Service struct {
	Catalog  CatalogService
	Checkout CheckoutService
	Booking  BookingService
	Payment  PaymentCoordinator
	Ledger   ReservationLedger
	SeatMap  SeatMap
}

// Deps are the outbound adapters the checkout engine talks to
type Deps struct {
	Gateway   gateway.PaymentGateway
	Publisher event.Publisher
	Redis     *redis.Client // required when the ledger is "redis"
	Clock     Clock
}

func NewService(repo *repository.Repository, deps Deps, config *utils.Config, log *zap.Logger) (*Service, error) {
	seats := NewSeatMap(repo, log)

	var ledger ReservationLedger
	switch config.Checkout.Ledger {
	case "", "memory":
		ledger = NewMemoryLedger(seats, deps.Clock, log)
	case "redis":
		if deps.Redis == nil {
			return nil, fmt.Errorf("redis hold ledger needs a redis client")
		}
		ledger = NewRedisLedger(deps.Redis, seats, deps.Clock, log)
	default:
		return nil, fmt.Errorf("unknown hold ledger %q", config.Checkout.Ledger)
	}

	cart := NewCartService(ledger, seats, repo, config.Checkout.HoldTTL, log)
	payments := NewPaymentCoordinator(repo, deps.Gateway, deps.Publisher, seats, ledger, cart, config, deps.Clock, log)

	return &Service{
		Catalog:  NewCatalogService(seats, repo, log),
		Checkout: NewCheckoutService(seats, cart, payments, config, deps.Clock, log),
		Booking:  NewBookingService(repo, log),
		Payment:  payments,
		Ledger:   ledger,
		SeatMap:  seats,
	}, nil
}
